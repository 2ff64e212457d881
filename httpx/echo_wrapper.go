package httpx

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Context aliases echo.Context so handlers only import httpx.
type Context = echo.Context

// HandlerFunc aliases echo.HandlerFunc.
type HandlerFunc = echo.HandlerFunc

// MiddlewareFunc aliases echo.MiddlewareFunc.
type MiddlewareFunc = echo.MiddlewareFunc

// Echo is the router handed to route registrars.
type Echo struct{ *echo.Echo }

// Route is one method/path/handler binding.
type Route struct {
	Method  string
	Path    string
	Handler HandlerFunc
}

// RegisterRoutes binds routes on e. Incomplete routes are ignored.
func RegisterRoutes(e *Echo, routes ...Route) {
	if e == nil || e.Echo == nil {
		return
	}
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || r.Method == "" {
			continue
		}
		e.Add(strings.ToUpper(r.Method), r.Path, r.Handler)
	}
}

// HTTPError builds an error the server renders with the given status.
func HTTPError(code int, message string) error { return echo.NewHTTPError(code, message) }
