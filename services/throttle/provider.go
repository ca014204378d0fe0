package throttle

import (
	"context"
	"io"

	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (Store, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("throttle store ready", zap.String("store", cfg.Throttle.Store))

	if closer, ok := store.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})
	}
	return store, nil
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
)
