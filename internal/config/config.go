package config

import (
	"fmt"
	"log/slog"
	"time"

	"fanpass/internal/cache"
	"fanpass/internal/database"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/external"
	"fanpass/internal/messaging"
	"fanpass/internal/obs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port              string `envconfig:"PORT" default:"8080"`
	GinMode           string `envconfig:"GIN_MODE" default:"release"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	RequestTimeoutSec int    `envconfig:"REQUEST_TIMEOUT_SEC" default:"30"`

	// Публичный адрес фронтенда, из него строятся return/cancel URL по умолчанию
	FrontendURL string `envconfig:"FRONTEND_URL" required:"true"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`

	// CHECKOUT.ORDER.APPROVED завершает платеж только при включенном флаге
	CompleteOnApproval bool `envconfig:"PAYPAL_COMPLETE_ON_APPROVAL" default:"false"`

	OrderRateLimit RateLimitConfig

	Database      database.Config
	NATS          messaging.Config
	Paypal        external.PaypalConfig
	Cache         cache.Config
	Elasticsearch ElasticsearchConfig
	Sweep         SweepConfig
	Tracing       obs.Config
}

// RateLimitConfig - лимит запросов на создание заказа с одного IP
type RateLimitConfig struct {
	RPS   float64       `envconfig:"ORDER_RATE_LIMIT_RPS" default:"5"`
	Burst int           `envconfig:"ORDER_RATE_LIMIT_BURST" default:"10"`
	TTL   time.Duration `envconfig:"ORDER_RATE_LIMIT_TTL" default:"3m"`
}

// SweepConfig - параметры фоновой сверки зависших pending платежей
type SweepConfig struct {
	Enabled   bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	MinAge    time.Duration `envconfig:"SWEEP_MIN_AGE" default:"10m"`
	MaxAge    time.Duration `envconfig:"SWEEP_MAX_AGE" default:"72h"`
	BatchSize int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения.
// Отсутствие обязательного ключа - ошибка ErrConfig, без запуска сервиса.
func Load() (*Config, error) {
	loadDotEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDatabase загружает только настройки базы данных (для cmd/migrate)
func LoadDatabase() (database.Config, error) {
	loadDotEnv()

	var cfg database.Config
	if err := envconfig.Process("", &cfg); err != nil {
		return database.Config{}, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Paypal.Env {
	case "sandbox", "production", "live":
	default:
		return fmt.Errorf("%w: PAYPAL_ENV must be sandbox or production, got %q", apperrors.ErrConfig, c.Paypal.Env)
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return fmt.Errorf("%w: SWEEP_INTERVAL must be positive", apperrors.ErrConfig)
	}
	if c.Sweep.MaxAge > 0 && c.Sweep.MaxAge <= c.Sweep.MinAge {
		return fmt.Errorf("%w: SWEEP_MAX_AGE must exceed SWEEP_MIN_AGE", apperrors.ErrConfig)
	}
	if c.OrderRateLimit.RPS <= 0 || c.OrderRateLimit.Burst <= 0 {
		return fmt.Errorf("%w: order rate limit must be positive", apperrors.ErrConfig)
	}
	return nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
}
