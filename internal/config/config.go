package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	SQLite    SQLiteConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Inventory InventoryConfig
}

type ServerConfig struct {
	Addr    string
	Backend string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SQLiteConfig struct {
	Path string
}

type MongoConfig struct {
	URI      string
	Database string
	Watch    bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type InventoryConfig struct {
	TxAttempts int
	UrgentDays int
}

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:    getEnv("LARDER_ADDR", ":8080"),
			Backend: strings.ToLower(getEnv("LARDER_BACKEND", BackendSQLite)),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("LARDER_DB_PATH", "larder.db"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("LARDER_MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("LARDER_MONGO_DB", "larder"),
			Watch:    getEnvBool("LARDER_MONGO_WATCH", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("LARDER_REDIS_ADDR", ""),
			Password: getEnv("LARDER_REDIS_PASSWORD", ""),
			DB:       getEnvInt("LARDER_REDIS_DB", 0),
			Channel:  getEnv("LARDER_REDIS_CHANNEL", "larder:changes"),
		},
		JWT: JWTConfig{
			Secret:   getEnv("LARDER_JWT_SECRET", ""),
			TokenTTL: getEnvDuration("LARDER_TOKEN_TTL", 720*time.Hour),
		},
		Inventory: InventoryConfig{
			TxAttempts: getEnvInt("LARDER_TX_ATTEMPTS", 5),
			UrgentDays: getEnvInt("LARDER_URGENT_DAYS", 7),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("LARDER_JWT_SECRET is required")
	}
	switch c.Server.Backend {
	case BackendSQLite, BackendMongo:
	default:
		return errors.New("LARDER_BACKEND must be sqlite or mongo")
	}
	if c.Inventory.TxAttempts < 1 {
		return errors.New("LARDER_TX_ATTEMPTS must be at least 1")
	}
	if c.Inventory.UrgentDays < 0 {
		return errors.New("LARDER_URGENT_DAYS must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
