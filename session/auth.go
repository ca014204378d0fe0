package session

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const UserIDKey = "_user_id"

// Login binds the session to userID after rotating the session token.
func Login(c echo.Context, userID uint) error {
	manager := GetManager(c)
	if manager == nil {
		return ErrNoSession
	}
	ctx := c.Request().Context()
	if err := manager.RenewToken(ctx); err != nil {
		return err
	}
	manager.Put(ctx, UserIDKey, userID)
	return nil
}

func Logout(c echo.Context) error {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	return manager.Destroy(c.Request().Context())
}

// Token returns the token of the loaded session. It is empty for a session
// that has not been saved yet.
func Token(c echo.Context) string {
	manager := GetManager(c)
	if manager == nil {
		return ""
	}
	return manager.Token(c.Request().Context())
}

// UserID returns the authenticated user id, or 0 for anonymous sessions.
func UserID(c echo.Context) uint {
	return GetUint(c, UserIDKey)
}

func IsAuthenticated(c echo.Context) bool {
	return UserID(c) > 0
}

func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAuthenticated(c) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			return next(c)
		}
	}
}
