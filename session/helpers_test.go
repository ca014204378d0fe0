package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/config"
)

func createTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newTestManager() *Manager {
	sessionManager := scs.New()
	sessionManager.Store = NewMemoryStore()
	sessionManager.Cookie.Name = "test_session"

	return &Manager{
		SessionManager: sessionManager,
		config: config.SessionConfig{
			MaxAge: time.Hour,
		},
	}
}

func setupContextWithSessionManager(c echo.Context) *Manager {
	manager := newTestManager()
	c.Set(sessionManagerKey, manager)

	ctx := context.WithValue(c.Request().Context(), sessionManagerContextKey, manager)
	loadedCtx, err := manager.Load(ctx, "")
	if err == nil {
		ctx = loadedCtx
	}
	c.SetRequest(c.Request().WithContext(ctx))

	return manager
}
