package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSheets = "sheets"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Sheets    SheetsConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	MongoDB   MongoDBConfig
	WhatsApp  WhatsAppConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// SQLiteConfig points at the local database file.
type SQLiteConfig struct {
	Path string
}

// RedisConfig enables the shared lock and catalog cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig enables ledger event publishing when brokers are set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether Kafka publishing is configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// MongoDBConfig holds settings for the daily report archive.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Enabled reports whether the report archive is configured.
func (c MongoDBConfig) Enabled() bool { return c.URI != "" }

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken    string
	PhoneNumberID  string
	BaseURL        string
	APIVersion     string
	AlertRecipient string
}

// Enabled reports whether operator notifications are configured.
func (c WhatsAppConfig) Enabled() bool { return c.AccessToken != "" }

// SchedulerConfig holds the cron expressions of the background jobs.
type SchedulerConfig struct {
	AlertsCron    string
	ReconcileCron string
	ReportCron    string
	Timezone      string
}

// CacheConfig bounds how stale catalog reads may be.
type CacheConfig struct {
	TTL time.Duration
}

// LogConfig holds the zap level.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromEnv() (*Config, error) {
	shutdown, err := durationWithDefault("APP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	lockTTL, err := durationWithDefault("REDIS_LOCK_TTL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := durationWithDefault("CATALOG_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(getenvWithDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getenvWithDefault("APP_PORT", "8080"),
			ShutdownTimeout: shutdown,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverSQLite)),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		SQLite: SQLiteConfig{
			Path: getenvWithDefault("SQLITE_PATH", "batchledger.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			LockTTL:  lockTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenvWithDefault("KAFKA_TOPIC", "batchledger.events"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "batchledger"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:    os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:        getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:     getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			AlertRecipient: os.Getenv("WHATSAPP_ALERT_RECIPIENT"),
		},
		Scheduler: SchedulerConfig{
			AlertsCron:    getenvWithDefault("ALERTS_CRON_SCHEDULE", "0 * * * *"),
			ReconcileCron: getenvWithDefault("RECONCILE_CRON_SCHEDULE", "30 2 * * *"),
			ReportCron:    getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:      getenvWithDefault("TIMEZONE", "Europe/Istanbul"),
		},
		Cache: CacheConfig{
			TTL: cacheTTL,
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return errors.New("SQLITE_PATH must be provided")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of sheets, sqlite, memory", c.Store.Driver)
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.AlertRecipient == "":
			return errors.New("WHATSAPP_ALERT_RECIPIENT must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Scheduler.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Scheduler.Timezone, err)
	}

	if c.Cache.TTL < 0 {
		return errors.New("CATALOG_CACHE_TTL must not be negative")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
