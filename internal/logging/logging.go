// Package logging adapts the gommon logger used by echo to ctxd.Logger, so
// HTTP access logs and backlog logs share one sink and one format.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bool64/ctxd"
	"github.com/labstack/gommon/log"
)

var _ ctxd.Logger = (*Logger)(nil)

// Logger writes ctxd structured messages as JSON lines through gommon/log.
type Logger struct {
	l *log.Logger
}

// New builds a logger writing to out at the named level
// (debug, info, warn, error or off).
func New(out io.Writer, prefix, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := log.New(prefix)
	l.SetOutput(out)
	l.SetLevel(lvl)
	l.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)

	return &Logger{l: l}, nil
}

// ParseLevel maps a level name to a gommon level.
func ParseLevel(level string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}

// Gommon exposes the underlying logger, e.g. to plug into echo.
func (l *Logger) Gommon() *log.Logger { return l.l }

func (l *Logger) Debug(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.l.Debugj(fields(ctx, msg, keysAndValues))
}

func (l *Logger) Info(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.l.Infoj(fields(ctx, msg, keysAndValues))
}

// Important messages are logged at info level and flagged.
func (l *Logger) Important(ctx context.Context, msg string, keysAndValues ...interface{}) {
	j := fields(ctx, msg, keysAndValues)
	j["important"] = true
	l.l.Infoj(j)
}

func (l *Logger) Warn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.l.Warnj(fields(ctx, msg, keysAndValues))
}

func (l *Logger) Error(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.l.Errorj(fields(ctx, msg, keysAndValues))
}

func fields(ctx context.Context, msg string, keysAndValues []interface{}) log.JSON {
	j := log.JSON{"message": msg}
	addPairs(j, ctxd.Fields(ctx))
	addPairs(j, keysAndValues)
	return j
}

func addPairs(j log.JSON, kv []interface{}) {
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 == len(kv) {
			j["!BADKEY"] = key
			break
		}

		switch v := kv[i+1].(type) {
		case error:
			j[key] = v.Error()
		case fmt.Stringer:
			j[key] = v.String()
		default:
			j[key] = v
		}
	}
}
