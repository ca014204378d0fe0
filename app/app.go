package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/server"
	"github.com/tech-arch1tect/bilim/services/accounts"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	fx       *fx.App
	config   *config.Config
	logger   *logging.Service
	db       *gorm.DB
	accounts *accounts.Service
	otp      *otp.Service
	sessions *session.Tracker
	// server is nil when the app was built without HTTP.
	server *server.Server
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Stop(ctx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	return nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Accounts() *accounts.Service {
	return a.accounts
}

func (a *App) OTP() *otp.Service {
	return a.otp
}

func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) Sessions() *session.Tracker {
	return a.sessions
}
