package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func TestModule(t *testing.T) {
	var db *gorm.DB

	app := fx.New(
		Module,
		fx.Provide(func() *config.Config {
			cfg := createTestConfig("sqlite", ":memory:", true)
			return &cfg
		}),
		fx.Provide(newTestLogger),
		fx.Supply(WithModels(Subject{})),
		fx.NopLogger,
		fx.Populate(&db),
	)
	require.NoError(t, app.Err())

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.True(t, db.Migrator().HasTable(&Subject{}))

	require.NoError(t, app.Stop(ctx))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "pool should be closed on stop")
}

func TestProvideDatabaseFx(t *testing.T) {
	cfg := createTestConfig("unsupported", "x", false)

	db, err := ProvideDatabaseFx(&cfg, nil, logging.NewNop())

	assert.Error(t, err)
	assert.Nil(t, db)
}
