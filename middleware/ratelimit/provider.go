package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

func ProvideRateLimitStore(lc fx.Lifecycle) Store {
	store := NewMemoryStore()
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
