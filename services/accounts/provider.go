package accounts

import (
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"github.com/tech-arch1tect/bilim/services/otp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(cfg *config.Config, db *gorm.DB, verifier *otp.Service, logger *logging.Service) *Service {
	return NewService(cfg, db, verifier, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideService),
	// handlers must be registered with the verifier even if nothing else asks for accounts
	fx.Invoke(func(*Service) {}),
)
