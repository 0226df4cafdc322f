package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Coral archive.
	CoralArchive  string
	CoralRowLimit int
	CoralCluster  bool
	MarkerCount   int

	// Location lookup.
	LocatorProvider  string
	LocatorTimeout   time.Duration
	LocatorCacheSize int
	IPInfoURL        string
	IPInfoToken      string
	GeoIPDBPath      string
	GoogleMapsAPIKey string

	// Sessions.
	SessionStore  string
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CSRFKey       string
	CSRFSecure    bool

	// Check-in sinks.
	LedgerDriver       string
	LedgerDSN          string
	KafkaBrokers       []string
	KafkaCheckinTopic  string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	locatorTimeout, err := parsePositiveDuration("LOCATOR_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parsePositiveDuration("SESSION_TTL", "24h")
	if err != nil {
		return nil, err
	}

	rowLimit, err := parsePositiveInt("CORAL_ROW_LIMIT", 100)
	if err != nil {
		return nil, err
	}

	markerCount, err := parsePositiveInt("MARKER_COUNT", 100)
	if err != nil {
		return nil, err
	}
	if markerCount > 100 {
		return nil, errors.New("invalid MARKER_COUNT: must be at most 100")
	}

	cacheSize, err := parsePositiveInt("LOCATOR_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CoralArchive:  sharedcfg.EnvOrDefault("CORAL_ARCHIVE", "data/Book3.zip"),
		CoralRowLimit: rowLimit,
		CoralCluster:  sharedcfg.EnvOrDefault("CORAL_CLUSTER", "true") == "true",
		MarkerCount:   markerCount,

		LocatorProvider:  strings.ToLower(sharedcfg.EnvOrDefault("LOCATOR_PROVIDER", "ipinfo")),
		LocatorTimeout:   locatorTimeout,
		LocatorCacheSize: cacheSize,
		IPInfoURL:        strings.TrimRight(sharedcfg.EnvOrDefault("IPINFO_URL", "https://ipinfo.io"), "/"),
		IPInfoToken:      os.Getenv("IPINFO_TOKEN"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),

		SessionStore:  strings.ToLower(sharedcfg.EnvOrDefault("SESSION_STORE", "memory")),
		SessionTTL:    sessionTTL,
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CSRFKey:       os.Getenv("CSRF_KEY"),
		CSRFSecure:    os.Getenv("CSRF_SECURE") == "true",

		LedgerDriver:       strings.ToLower(sharedcfg.EnvOrDefault("LEDGER_DRIVER", "none")),
		LedgerDSN:          os.Getenv("LEDGER_DSN"),
		KafkaBrokers:       brokers,
		KafkaCheckinTopic:  sharedcfg.EnvOrDefault("KAFKA_CHECKIN_TOPIC", "safesea-checkins"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CoralArchive == "" {
		return errors.New("CORAL_ARCHIVE is required")
	}
	switch c.LocatorProvider {
	case "ipinfo":
		if c.IPInfoURL == "" {
			return errors.New("IPINFO_URL is required for the ipinfo provider")
		}
	case "geoip2":
		if c.GeoIPDBPath == "" {
			return errors.New("LOCATOR_PROVIDER is geoip2 but GEOIP_DB_PATH is not set")
		}
	case "google":
		if c.GoogleMapsAPIKey == "" {
			return errors.New("LOCATOR_PROVIDER is google but GOOGLE_MAPS_API_KEY is not set")
		}
	default:
		return fmt.Errorf("invalid LOCATOR_PROVIDER %q", c.LocatorProvider)
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_STORE %q", c.SessionStore)
	}
	switch c.LedgerDriver {
	case "none":
	case "sqlite", "postgres":
		if c.LedgerDSN == "" {
			return fmt.Errorf("LEDGER_DRIVER is %s but LEDGER_DSN is not set", c.LedgerDriver)
		}
	default:
		return fmt.Errorf("invalid LEDGER_DRIVER %q", c.LedgerDriver)
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return errors.New("invalid CSRF_KEY: must be exactly 32 bytes")
	}
	return nil
}

// KafkaEnabled reports whether check-ins are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
