package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env       string `env:"APP_ENV"    envDefault:"dev"`
	Port      int    `env:"APP_PORT"   envDefault:"8000"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"postgres"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	SQLitePath     string        `env:"SQLITE_PATH"`
	RedisURL       string        `env:"REDIS_URL"`
	RideCacheTTL   time.Duration `env:"RIDE_CACHE_TTL" envDefault:"30s"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// JWT
	JWTPrivatePEM string `env:"JWT_PRIVATE_PEM"`
	JWTPublicPEM  string `env:"JWT_PUBLIC_PEM"`

	// Google ID tokens
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	Chat ChatConfig
	WS   WSConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DemoSeed        bool          `env:"DEMO_SEED"        envDefault:"false"`
}

type ChatConfig struct {
	AllowAnonymous  bool          `env:"CHAT_ALLOW_ANONYMOUS"   envDefault:"true"`
	SendTimeout     time.Duration `env:"CHAT_SEND_TIMEOUT"      envDefault:"5s"`
	HistoryLimit    int           `env:"CHAT_HISTORY_LIMIT"     envDefault:"200"`
	MaxMessageRunes int           `env:"CHAT_MAX_MESSAGE_RUNES" envDefault:"2000"`
	OutboundBuffer  int           `env:"CHAT_OUTBOUND_BUFFER"   envDefault:"256"`
	RateLimit       float64       `env:"CHAT_RATE_LIMIT"        envDefault:"5"`
	RateBurst       int           `env:"CHAT_RATE_BURST"        envDefault:"10"`
}

type WSConfig struct {
	MaxFrameBytes int64         `env:"WS_MAX_FRAME_BYTES" envDefault:"16384"`
	PongWait      time.Duration `env:"WS_PONG_WAIT"       envDefault:"60s"`
	WriteWait     time.Duration `env:"WS_WRITE_WAIT"      envDefault:"10s"`
}

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.Port))
	}
	if c.Chat.SendTimeout <= 0 {
		errs = append(errs, errors.New("CHAT_SEND_TIMEOUT must be positive"))
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_LIMIT must not be negative"))
	}
	if c.Chat.RateLimit < 0 {
		errs = append(errs, errors.New("CHAT_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) IsDev() bool { return c.Env == "dev" }

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
