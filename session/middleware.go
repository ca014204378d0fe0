package session

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	sessionManagerKey                   = "session_manager"
	sessionManagerContextKey contextKey = "session_manager"
)

// Middleware loads the session before the handler and commits it before the
// first byte of the response is written. Handler errors are rendered inside
// the session scope so error responses still carry the session cookie.
func Middleware(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if manager == nil {
				return next(c)
			}

			c.Set(sessionManagerKey, manager)

			handler := manager.SessionManager.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := context.WithValue(r.Context(), sessionManagerContextKey, manager)
				c.SetRequest(r.WithContext(ctx))
				c.Response().Writer = w

				if err := next(c); err != nil {
					c.Error(err)
				}
			}))

			handler.ServeHTTP(c.Response().Writer, c.Request())
			return nil
		}
	}
}

func GetManager(c echo.Context) *Manager {
	if manager, ok := c.Get(sessionManagerKey).(*Manager); ok {
		return manager
	}
	return nil
}

func GetManagerFromContext(ctx context.Context) *Manager {
	if manager, ok := ctx.Value(sessionManagerContextKey).(*Manager); ok {
		return manager
	}
	return nil
}
