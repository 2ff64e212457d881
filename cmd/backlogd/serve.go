package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Summon528/Flexget/api"
	"github.com/Summon528/Flexget/httpx"
	"github.com/bool64/stats"
	"github.com/spf13/cobra"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backlog admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStorage(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		st := &stats.TrackerMock{}
		m, err := store.manager(logger, st)
		if err != nil {
			return err
		}

		addr := cfg.Listen
		if flagListen != "" {
			addr = flagListen
		}

		server := httpx.NewServer(
			httpx.WithAddress(addr),
			httpx.WithLogger(logger.Gommon()),
			httpx.AppendMiddlewares(httpx.RequestLogger(logger)),
		)
		server.RegisterRoutes(api.NewHandler(m, api.Options{Logger: logger, Stats: st, DB: store.db}).Register)

		logger.Important(ctx, "serving backlog api", "addr", server.Address(), "driver", cfg.Database.Driver)
		if err := server.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info(ctx, "shut down")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "override listen address from config")
}
