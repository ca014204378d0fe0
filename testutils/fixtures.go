package testutils

import (
	"time"

	"github.com/tech-arch1tect/bilim/config"
	"golang.org/x/crypto/bcrypt"
)

const TestResetSigningKey = "k9f3m2x8q7w1z5v4n6b0c2d8e7r3t1y9"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Bilim Test",
			URL:  "http://localhost:8080",
		},
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: "0",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Session: config.SessionConfig{
			Enabled:  true,
			Store:    "memory",
			Name:     "bilim_session",
			MaxAge:   time.Hour,
			Path:     "/",
			HttpOnly: true,
			SameSite: "lax",
		},
		Mail: config.MailConfig{
			Driver:      "log",
			FromAddress: "no-reply@bilim.test",
			FromName:    "Bilim Test",
		},
		Auth: config.AuthConfig{
			MinLength:       8,
			RequireUpper:    true,
			RequireLower:    true,
			RequireNumber:   true,
			BcryptCost:      bcrypt.MinCost,
			ResetSigningKey: TestResetSigningKey,
		},
		OTP: config.OTPConfig{
			CodeTTL:        5 * time.Minute,
			ResendCooldown: 60 * time.Second,
			MaxAttempts:    5,
			ResetGrantTTL:  15 * time.Minute,
		},
		Throttle: config.ThrottleConfig{Store: "memory"},
		Notifier: config.NotifierConfig{
			Workers:    1,
			QueueSize:  16,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Rate:    10,
			Period:  time.Minute,
		},
	}
}

var TestPasswords = struct {
	Valid    string
	Other    string
	TooShort string
	NoUpper  string
	NoNumber string
}{
	Valid:    "Password123",
	Other:    "Different456",
	TooShort: "Pass1",
	NoUpper:  "password123",
	NoNumber: "Password",
}

// Epoch is a fixed instant tests start their clocks from.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
