package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Environment   string `envconfig:"ENV" default:"development"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DBDSN         string `envconfig:"DB_DSN"`

	MigrationsEnabled bool `envconfig:"MIGRATIONS_ENABLED" default:"true"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	StorageDir    string `envconfig:"STORAGE_DIR" default:"./data/objects"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	MaxUploadMB   int64  `envconfig:"MAX_UPLOAD_MB" default:"10"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"1m"`

	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`

	// Пользователь с этим email получает роль admin при старте
	AdminEmail string `envconfig:"ADMIN_EMAIL"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	CompletionInterval time.Duration `envconfig:"COMPLETION_INTERVAL" default:"15m"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию только из переменных окружения
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	// Нулевой интервал роняет time.NewTicker в планировщике
	if c.CompletionInterval <= 0 {
		return fmt.Errorf("COMPLETION_INTERVAL must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
