package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	CSRF      CSRFConfig      `envPrefix:"CSRF_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	OTP       OTPConfig       `envPrefix:"OTP_"`
	Throttle  ThrottleConfig  `envPrefix:"THROTTLE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Notifier  NotifierConfig  `envPrefix:"NOTIFIER_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Superuser SuperuserConfig `envPrefix:"SUPERUSER_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"bilim"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"bilim.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Store    string        `env:"STORE" envDefault:"memory"`
	Name     string        `env:"NAME" envDefault:"bilim_session"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"24h"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
	Secure   bool          `env:"SECURE" envDefault:"false"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
}

type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"false"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"form:_csrf,header:X-CSRF-Token"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"lax"`
}

type MailConfig struct {
	Driver       string `env:"DRIVER" envDefault:"smtp"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"no-reply@localhost"`
	FromName     string `env:"FROM_NAME" envDefault:"bilim"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type AuthConfig struct {
	MinLength      int     `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool    `env:"REQUIRE_UPPER" envDefault:"false"`
	RequireLower   bool    `env:"REQUIRE_LOWER" envDefault:"false"`
	RequireNumber  bool    `env:"REQUIRE_NUMBER" envDefault:"false"`
	RequireSpecial bool    `env:"REQUIRE_SPECIAL" envDefault:"false"`
	MinEntropyBits float64 `env:"MIN_ENTROPY_BITS" envDefault:"0"`
	BcryptCost     int     `env:"BCRYPT_COST" envDefault:"10"`
	// ResetSigningKey signs password reset grants. Empty disables the reset flow.
	ResetSigningKey string `env:"RESET_SIGNING_KEY"`
}

type OTPConfig struct {
	CodeTTL        time.Duration `env:"CODE_TTL" envDefault:"5m"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	ResetGrantTTL  time.Duration `env:"RESET_GRANT_TTL" envDefault:"15m"`
}

type ThrottleConfig struct {
	Store string `env:"STORE" envDefault:"memory"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type NotifierConfig struct {
	Workers       int           `env:"WORKERS" envDefault:"2"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"256"`
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelay    time.Duration `env:"RETRY_DELAY" envDefault:"10s"`
	RatePerSecond float64       `env:"RATE_PER_SECOND" envDefault:"0"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
)

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Rate    int           `env:"RATE" envDefault:"10"`
	Period  time.Duration `env:"PERIOD" envDefault:"1m"`
}

type SuperuserConfig struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateOTPConfig(&c.OTP); err != nil {
		return err
	}
	if err := validateNotifierConfig(&c.Notifier); err != nil {
		return err
	}
	return validateAuthConfig(&c.Auth)
}

func validateOTPConfig(cfg *OTPConfig) error {
	if cfg.CodeTTL <= 0 {
		return fmt.Errorf("OTP code TTL must be positive")
	}
	if cfg.ResendCooldown <= 0 {
		return fmt.Errorf("OTP resend cooldown must be positive")
	}
	if cfg.MaxAttempts < 0 {
		return fmt.Errorf("OTP max attempts cannot be negative")
	}
	return nil
}

func validateNotifierConfig(cfg *NotifierConfig) error {
	if cfg.Workers < 1 {
		return fmt.Errorf("notifier needs at least one worker")
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("notifier queue size must be at least 1")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("notifier max retries cannot be negative")
	}
	return nil
}

func validateAuthConfig(cfg *AuthConfig) error {
	if cfg.ResetSigningKey == "" {
		return nil
	}
	if len(cfg.ResetSigningKey) < 32 {
		return fmt.Errorf("reset signing key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.ResetSigningKey)
	for _, weak := range []string{"password", "secret", "changeme", "example"} {
		if strings.Contains(lower, weak) {
			return fmt.Errorf("reset signing key contains weak patterns")
		}
	}
	return nil
}
