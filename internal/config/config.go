package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir     string
	ModelPath   string
	SiteProfile string

	DatabaseDriver string
	DatabaseURL    string

	ERDDAPURL         string
	ERDDAPTimeout     time.Duration
	ERDDAPMaxAttempts int
	ERDDAPRetryDelay  time.Duration
	ERDDAPUserAgent   string

	// Snapshot cache: memory, redis or none.
	CacheDriver string
	CacheSize   int
	CacheTTL    time.Duration
	RedisAddr   string

	// Publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Alerts are disabled when TelegramBotToken is empty.
	TelegramBotToken string
	TelegramChatID   int64
	AlertMinLevel    domain.AlertLevel

	ReloadSchedule string
	StatusSchedule string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	erddapTimeout, err := parseDuration("ERDDAP_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("ERDDAP_RETRY_DELAY", "2s", true)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "6h", true)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parsePositiveInt("ERDDAP_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	chatID, err := parseChatID()
	if err != nil {
		return nil, err
	}
	alertMin, ok := domain.ParseAlertLevel(sharedcfg.EnvOrDefault("ALERT_MIN_LEVEL", string(domain.Alert1)))
	if !ok {
		return nil, errors.New("invalid ALERT_MIN_LEVEL: must be no-risk, watch, alert-1 or alert-2")
	}
	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	pathStyle, err := strconv.ParseBool(sharedcfg.EnvOrDefault("AWS_S3_PATH_STYLE", "false"))
	if err != nil {
		return nil, errors.New("invalid AWS_S3_PATH_STYLE: must be a boolean")
	}

	cfg := &Config{
		DataDir:     sharedcfg.EnvOrDefault("DATA_DIR", "./dados"),
		ModelPath:   sharedcfg.EnvOrDefault("MODEL_PATH", "ml_models/coral_rf.json"),
		SiteProfile: os.Getenv("SITE_PROFILE"),

		DatabaseDriver: sharedcfg.EnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    sharedcfg.EnvOrDefault("DATABASE_URL", "coral.db"),

		ERDDAPURL:         sharedcfg.EnvOrDefault("ERDDAP_URL", "https://coastwatch.pfeg.noaa.gov/erddap/griddap/NOAA_DHW.csv"),
		ERDDAPTimeout:     erddapTimeout,
		ERDDAPMaxAttempts: maxAttempts,
		ERDDAPRetryDelay:  retryDelay,
		ERDDAPUserAgent:   os.Getenv("ERDDAP_USER_AGENT"),

		CacheDriver: sharedcfg.EnvOrDefault("CACHE_DRIVER", "memory"),
		CacheSize:   cacheSize,
		CacheTTL:    cacheTTL,
		RedisAddr:   sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "coral-risk-status"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   chatID,
		AlertMinLevel:    alertMin,

		ReloadSchedule: sharedcfg.EnvOrDefault("RELOAD_SCHEDULE", "0 3 * * *"),
		StatusSchedule: sharedcfg.EnvOrDefault("STATUS_SCHEDULE", "30 6 * * *"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		S3Region:    os.Getenv("AWS_REGION"),
		S3Endpoint:  os.Getenv("AWS_S3_ENDPOINT"),
		S3PathStyle: pathStyle,
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: must be sqlite or postgres", cfg.DatabaseDriver)
	}
	switch cfg.CacheDriver {
	case "memory", "redis", "none":
	default:
		return nil, fmt.Errorf("invalid CACHE_DRIVER %q: must be memory, redis or none", cfg.CacheDriver)
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == 0 {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is set but TELEGRAM_CHAT_ID is not")
	}

	return cfg, nil
}

// KafkaEnabled reports whether statuses are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// TelegramEnabled reports whether alerts are sent.
func (c *Config) TelegramEnabled() bool { return c.TelegramBotToken != "" }

func parseDuration(name, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseChatID() (int64, error) {
	s := os.Getenv("TELEGRAM_CHAT_ID")
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid TELEGRAM_CHAT_ID")
	}
	return id, nil
}
