package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/session"
	"github.com/tech-arch1tect/bilim/testutils"
	"go.uber.org/fx"
)

func startApp(t *testing.T, b *AppBuilder) *App {
	t.Helper()

	app, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, app.Stop(ctx))
	})
	return app
}

func TestBuild_ServesHTTP(t *testing.T) {
	app := startApp(t, NewApp().WithConfig(testutils.GetTestConfig()))

	require.NotNil(t, app.Server())
	require.NotEmpty(t, app.Server().ListenAddr())

	resp, err := http.Get("http://" + app.Server().ListenAddr() + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + app.Server().ListenAddr() + "/account/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuild_WithoutHTTP(t *testing.T) {
	app := startApp(t, NewApp().WithConfig(testutils.GetTestConfig()).WithoutHTTP())

	assert.Nil(t, app.Server())
	require.NotNil(t, app.Accounts())
	require.NotNil(t, app.OTP())
	require.NotNil(t, app.Sessions())
	assert.NotNil(t, app.Logger())

	for _, model := range Models() {
		assert.True(t, app.DB().Migrator().HasTable(model))
	}

	user, created, err := app.Accounts().EnsureSuperuser(context.Background(), "admin@example.com", testutils.TestPasswords.Valid)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, user.IsSuperuser)

	removed, err := app.Sessions().CleanupExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestBuild_RegistersVerificationHandlers(t *testing.T) {
	cfg := testutils.GetTestConfig()
	var verifier *otp.Service
	app := startApp(t, NewApp().WithConfig(cfg).WithoutHTTP().WithFxOptions(fx.Populate(&verifier)))

	assert.Same(t, app.OTP(), verifier)

	_, err := verifier.Verify(context.Background(), 1, otp.ActionRegistration, "123456")
	assert.ErrorIs(t, err, otp.ErrNotFound)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewApp().WithConfig(nil).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config cannot be nil")
	})

	t.Run("unsupported database driver", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Database.Driver = "oracle"

		_, err := NewApp().WithConfig(cfg).WithoutHTTP().Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("unsupported session store", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Session.Store = "cookie"

		_, err := NewApp().WithConfig(cfg).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported session store")
	})
}

func TestModels(t *testing.T) {
	models := Models()
	require.Len(t, models, 4)
	assert.IsType(t, &otp.VerificationRequest{}, models[2])
	assert.IsType(t, &session.UserSession{}, models[3])
}

func TestNewApp_Defaults(t *testing.T) {
	b := NewApp()
	assert.True(t, b.http)
	assert.Nil(t, b.config)
	assert.Len(t, b.models, len(Models()))

	cfg := &config.Config{}
	assert.Same(t, cfg, b.WithConfig(cfg).config)
}
