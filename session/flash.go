package session

import (
	"github.com/labstack/echo/v4"
)

const (
	FlashKey     = "_flash"
	FlashTypeKey = "_flash_type"
)

type FlashType string

const (
	FlashSuccess FlashType = "success"
	FlashError   FlashType = "error"
	FlashWarning FlashType = "warning"
	FlashInfo    FlashType = "info"
)

type FlashMessage struct {
	Message string    `json:"message"`
	Type    FlashType `json:"type"`
}

// SetFlash replaces any pending flash message.
func SetFlash(c echo.Context, flashType FlashType, message string) {
	manager := GetManager(c)
	if manager == nil {
		return
	}
	ctx := c.Request().Context()
	manager.Put(ctx, FlashKey, message)
	manager.Put(ctx, FlashTypeKey, string(flashType))
}

func SetFlashSuccess(c echo.Context, message string) {
	SetFlash(c, FlashSuccess, message)
}

func SetFlashError(c echo.Context, message string) {
	SetFlash(c, FlashError, message)
}

func SetFlashInfo(c echo.Context, message string) {
	SetFlash(c, FlashInfo, message)
}

// PopFlash returns and clears the pending flash message, or nil.
func PopFlash(c echo.Context) *FlashMessage {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	ctx := c.Request().Context()
	message := manager.PopString(ctx, FlashKey)
	flashType := manager.PopString(ctx, FlashTypeKey)
	if message == "" {
		return nil
	}
	if flashType == "" {
		flashType = string(FlashError)
	}
	return &FlashMessage{Message: message, Type: FlashType(flashType)}
}
