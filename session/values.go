package session

import (
	"errors"

	"github.com/labstack/echo/v4"
)

var ErrNoSession = errors.New("session middleware not installed")

func Put(c echo.Context, key string, value any) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	manager.Put(c.Request().Context(), key, value)
}

func PutUint(c echo.Context, key string, value uint) {
	Put(c, key, value)
}

func Get(c echo.Context, key string) any {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	return manager.Get(c.Request().Context(), key)
}

func GetUint(c echo.Context, key string) uint {
	return toUint(Get(c, key))
}

// PopUint reads and removes key in one step.
func PopUint(c echo.Context, key string) uint {
	manager := GetManager(c)
	if manager == nil {
		return 0
	}
	return toUint(manager.Pop(c.Request().Context(), key))
}

func Remove(c echo.Context, key string) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	manager.Remove(c.Request().Context(), key)
}

func toUint(value any) uint {
	switch v := value.(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case int64:
		if v > 0 {
			return uint(v)
		}
	case uint64:
		return uint(v)
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
