package notifier

import (
	"context"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/mail"
	"go.uber.org/fx"
)

func ProvideNotifier(lc fx.Lifecycle, cfg *config.Config, mailer *mail.Service, logger *logging.Service) *Service {
	service := NewService(&cfg.Notifier, mailer, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			service.Start()
			return nil
		},
		OnStop: service.Stop,
	})

	return service
}

var Module = fx.Options(
	fx.Provide(ProvideNotifier),
)
