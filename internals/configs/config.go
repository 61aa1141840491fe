package configs

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config adalah seluruh konfigurasi runtime, dibaca dari environment.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         string `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME" envDefault:"beasiswaku"`
	DBSSLMode      string `env:"DB_SSLMODE" envDefault:"require"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBStatementMS  int    `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"3000"`

	JWTSecret string `env:"JWT_SECRET"`

	RedisURL      string        `env:"REDIS_URL"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	NotifyChannel string        `env:"NOTIFY_CHANNEL" envDefault:"scholarship:events"`

	MidtransIrisAPIKey string `env:"MIDTRANS_IRIS_API_KEY"`
	MidtransUseProd    bool   `env:"MIDTRANS_USE_PROD" envDefault:"false"`

	BudgetExpiryCron  string        `env:"BUDGET_EXPIRY_CRON" envDefault:"5 0 * * *"`
	StalledStageCron  string        `env:"STALLED_STAGE_CRON" envDefault:"0 7 * * 1-5"`
	StalledStageAfter time.Duration `env:"STALLED_STAGE_AFTER" envDefault:"336h"`

	InterviewLeadDays int `env:"INTERVIEW_LEAD_DAYS" envDefault:"3"`
	InterviewHour     int `env:"INTERVIEW_HOUR" envDefault:"9"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	// IP atau CIDR load balancer yang boleh mengisi X-Forwarded-For.
	// Kosong = alamat socket dianggap IP client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// =======================
// ENV LOADER
// =======================

// Load membaca .env (di luar Railway) lalu parse environment ke Config.
func Load() (Config, error) {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			logrus.Info("no .env file found, using system environment")
		} else {
			logrus.Info(".env file loaded")
		}
	} else {
		logrus.Info("running in Railway, using system environment")
	}
	return Parse()
}

// Parse mem-parse environment saat ini tanpa menyentuh .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.InterviewHour < 0 || c.InterviewHour > 23 {
		return fmt.Errorf("INTERVIEW_HOUR must be between 0 and 23, got %d", c.InterviewHour)
	}
	if c.InterviewLeadDays < 0 {
		return fmt.Errorf("INTERVIEW_LEAD_DAYS must not be negative, got %d", c.InterviewLeadDays)
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES entry %q is neither an IP nor a CIDR", p)
			}
		}
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	return nil
}

// DSN menyusun connection string postgres, statement_timeout disamakan
// dengan timeout HTTP.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=beasiswaku&options=-c%%20statement_timeout=%d",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode, c.DBStatementMS,
	)
}

// AllowOrigins merender CORSOrigins untuk middleware cors fiber.
func (c Config) AllowOrigins() string {
	return strings.Join(c.CORSOrigins, ", ")
}
