package session

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
}

// Config returns the cookie and lifetime settings the manager was built with.
func (m *Manager) Config() config.SessionConfig {
	return m.config
}

type Options struct {
	Store scs.Store
}

// NewManager builds a session manager. A nil return with a nil error means
// sessions are disabled.
func NewManager(cfg *config.Config, opts *Options, db *gorm.DB) (*Manager, error) {
	if !cfg.Session.Enabled {
		return nil, nil
	}

	sessionManager := scs.New()

	var store scs.Store
	var err error

	if opts != nil && opts.Store != nil {
		store = opts.Store
	} else {
		switch cfg.Session.Store {
		case "memory", "":
			store = NewMemoryStore()
		case "database":
			if db == nil {
				return nil, fmt.Errorf("database session store requires a database connection")
			}
			store, err = NewDatabaseStore(db)
			if err != nil {
				return nil, fmt.Errorf("failed to create database session store: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported session store: %s", cfg.Session.Store)
		}
	}

	sessionManager.Store = store
	sessionManager.Lifetime = cfg.Session.MaxAge
	sessionManager.IdleTimeout = cfg.Session.MaxAge
	sessionManager.Cookie.Name = cfg.Session.Name
	sessionManager.Cookie.Path = cfg.Session.Path
	sessionManager.Cookie.Domain = cfg.Session.Domain
	sessionManager.Cookie.Secure = cfg.Session.Secure
	sessionManager.Cookie.HttpOnly = cfg.Session.HttpOnly
	sessionManager.Cookie.SameSite = sameSiteMode(cfg.Session.SameSite)

	return &Manager{
		SessionManager: sessionManager,
		config:         cfg.Session,
	}, nil
}

func sameSiteMode(value string) http.SameSite {
	switch value {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func ProvideSessionManager(cfg *config.Config, db *gorm.DB, logger *logging.Service) (*Manager, error) {
	manager, err := NewManager(cfg, nil, db)
	if err != nil {
		return nil, err
	}
	if manager == nil {
		logger.Warn("sessions disabled, verification flows that need a session will reject requests")
		return nil, nil
	}
	logger.Info("session manager ready",
		zap.String("store", cfg.Session.Store),
		zap.Duration("lifetime", cfg.Session.MaxAge))
	return manager, nil
}

func ProvideTracker(db *gorm.DB, manager *Manager, logger *logging.Service) *Tracker {
	return NewTracker(db, manager, logger)
}

var Module = fx.Module("session",
	fx.Provide(ProvideSessionManager),
	fx.Provide(ProvideTracker),
)
