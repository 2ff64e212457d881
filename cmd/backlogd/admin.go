package main

import (
	"fmt"
	"time"

	"github.com/Summon528/Flexget/api"
	"github.com/Summon528/Flexget/httpx"
	"github.com/spf13/cobra"
)

func remoteClient() *api.Client {
	return api.NewClient(flagServer,
		httpx.WithClientTimeout(10*time.Second),
		httpx.WithRetries(2),
		httpx.WithUserAgent("backlogd/"+version),
	)
}

var listCmd = &cobra.Command{
	Use:   "list <feed>",
	Short: "List backlog records of a feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed := args[0]
		ctx := cmd.Context()

		var records []api.Record
		if flagServer != "" {
			resp, err := remoteClient().List(ctx, feed)
			if err != nil {
				return err
			}
			records = resp.Records
		} else {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			m, err := store.manager(logger, nil)
			if err != nil {
				return err
			}
			stored, err := m.List(ctx, feed)
			if err != nil {
				return err
			}
			now := time.Now()
			for _, r := range stored {
				records = append(records, api.Record{Feed: r.Feed, Title: r.Title, ExpireAt: r.ExpireAt, Expired: r.Expired(now), Entry: r.Payload})
			}
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "No backlog for %s.\n", feed)
			return nil
		}
		for _, r := range records {
			mark := ""
			if r.Expired {
				mark = " (expired)"
			}
			fmt.Fprintf(out, "%s\t%s%s\n", r.ExpireAt.Local().Format(time.RFC3339), r.Title, mark)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <feed>",
	Short: "Delete expired backlog records of a feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed := args[0]
		ctx := cmd.Context()

		if flagServer != "" {
			if err := remoteClient().Purge(ctx, feed); err != nil {
				return err
			}
		} else {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			m, err := store.manager(logger, nil)
			if err != nil {
				return err
			}
			if err := m.Purge(ctx, feed); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Purged expired backlog of %s.\n", feed)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the backlog schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStorage(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		defer store.Close()

		logger.Important(cmd.Context(), "schema up to date", "driver", cfg.Database.Driver)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, purgeCmd} {
		c.Flags().StringVar(&flagServer, "server", "", "talk to a running backlogd at this base URL instead of the database")
	}
}
