package app

import (
	"fmt"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/database"
	"github.com/tech-arch1tect/bilim/handlers"
	"github.com/tech-arch1tect/bilim/middleware/ratelimit"
	"github.com/tech-arch1tect/bilim/server"
	"github.com/tech-arch1tect/bilim/services/accounts"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/mail"
	"github.com/tech-arch1tect/bilim/services/notifier"
	"github.com/tech-arch1tect/bilim/services/otp"
	"github.com/tech-arch1tect/bilim/services/throttle"
	"github.com/tech-arch1tect/bilim/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	http      bool
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		http:   true,
		models: Models(),
	}
}

// Models lists every table the service migrates.
func Models() []any {
	models := append(accounts.Models(), &otp.VerificationRequest{})
	return append(models, session.Models()...)
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithoutHTTP builds only the services, for maintenance commands.
func (b *AppBuilder) WithoutHTTP() *AppBuilder {
	b.http = false
	return b
}

func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %v", b.errors)
	}

	app := &App{config: b.config}

	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		fx.Supply(database.WithModels(b.models...)),
		logging.Module,
		database.Module,
		mail.Module,
		notifier.Module,
		throttle.Module,
		otp.Module,
		accounts.Module,
		session.Module,
	}
	if b.http {
		options = append(options,
			ratelimit.Module,
			server.Module,
			handlers.Module,
			fx.Populate(&app.server),
		)
	}
	options = append(options, b.fxOptions...)
	options = append(options, fx.Populate(&app.logger, &app.db, &app.accounts, &app.otp, &app.sessions))

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}
