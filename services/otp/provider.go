package otp

import (
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/notifier"
	"github.com/tech-arch1tect/bilim/services/throttle"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(cfg *config.Config, db *gorm.DB, store throttle.Store, n *notifier.Service, logger *logging.Service) *Service {
	return NewService(&cfg.OTP, db, store, n, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideService),
)
