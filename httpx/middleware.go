package httpx

import (
	"time"

	"github.com/bool64/ctxd"
	"github.com/labstack/echo/v4"
)

// RequestLogger logs every request through a ctxd.Logger and adds the
// request id to the request context so downstream logs carry it.
func RequestLogger(logger ctxd.Logger) MiddlewareFunc {
	if logger == nil {
		logger = ctxd.NoOpLogger{}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			req := c.Request()

			ctx := req.Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = ctxd.AddFields(ctx, "request_id", id)
				c.SetRequest(req.WithContext(ctx))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			kv := []interface{}{
				"method", req.Method,
				"path", c.Path(),
				"status", status,
				"latency", time.Since(start).String(),
			}
			if status >= StatusInternalError {
				logger.Error(ctx, "request failed", append(kv, "error", err)...)
			} else {
				logger.Debug(ctx, "request served", kv...)
			}
			return nil
		}
	}
}
