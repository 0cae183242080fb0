package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pairvault/pairvault/internal/payload"
)

const (
	defaultAppName         = "PairVault"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultBlobBackend     = BlobBackendFile
	defaultBlobDir         = "data/blobs"
	defaultMongoDatabase   = "pairvault"
	defaultMongoCollection = "memory_blobs"
	defaultSchemaVersion   = 2
	defaultMaxImageBytes   = 10 << 20
	defaultScanRateLimit   = 30
	defaultMaxConns        = 10
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	configFileEnvVar       = "PAIRVAULT_CONFIG"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Blob backends selectable through BLOB_BACKEND.
const (
	BlobBackendRedis  = "redis"
	BlobBackendFile   = "file"
	BlobBackendMongo  = "mongo"
	BlobBackendMemory = "memory"
)

// Config captures application runtime configuration.
type Config struct {
	AppName             string
	AppEnv              string
	Port                string
	LogLevel            string
	DatabaseURL         string
	SQLitePath          string
	RedisURL            string
	BlobBackend         string
	BlobDir             string
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	SchemaVersion       int
	MaxImageBytes       int
	ScanRateLimitPerMin int
	MaxConns            int
	AutoMigrate         bool
	ShutdownPeriod      time.Duration
	IdempotencyTTL      time.Duration
}

// fileConfig is the optional YAML file named by PAIRVAULT_CONFIG. Its values
// act as defaults; environment variables always win.
type fileConfig struct {
	AppName             string `yaml:"app_name"`
	AppEnv              string `yaml:"app_env"`
	Port                string `yaml:"port"`
	LogLevel            string `yaml:"log_level"`
	DatabaseURL         string `yaml:"database_url"`
	SQLitePath          string `yaml:"sqlite_path"`
	RedisURL            string `yaml:"redis_url"`
	BlobBackend         string `yaml:"blob_backend"`
	BlobDir             string `yaml:"blob_dir"`
	MongoURI            string `yaml:"mongo_uri"`
	MongoDatabase       string `yaml:"mongo_database"`
	MongoCollection     string `yaml:"mongo_collection"`
	SchemaVersion       string `yaml:"schema_version"`
	MaxImageBytes       string `yaml:"max_image_bytes"`
	ScanRateLimitPerMin string `yaml:"scan_rate_limit_per_min"`
	MaxConns            string `yaml:"max_conns"`
	AutoMigrate         string `yaml:"auto_migrate"`
	ShutdownTimeout     string `yaml:"shutdown_timeout"`
	IdempotencyTTL      string `yaml:"idempotency_ttl"`
}

// Load reads the optional config file and the environment and populates a Config instance.
func Load() (Config, error) {
	var file fileConfig
	if path := os.Getenv(configFileEnvVar); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configFileEnvVar, err)
		}
		if err := yaml.Unmarshal(content, &file); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg := Config{
		AppName:         getEnv("APP_NAME", or(file.AppName, defaultAppName)),
		AppEnv:          getEnv("APP_ENV", or(file.AppEnv, defaultAppEnv)),
		Port:            getEnv("PORT", or(file.Port, defaultPort)),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", or(file.LogLevel, defaultLogLevel))),
		DatabaseURL:     getEnv("DATABASE_URL", file.DatabaseURL),
		SQLitePath:      getEnv("SQLITE_PATH", file.SQLitePath),
		RedisURL:        getEnv("REDIS_URL", file.RedisURL),
		BlobBackend:     strings.ToLower(getEnv("BLOB_BACKEND", or(file.BlobBackend, defaultBlobBackend))),
		BlobDir:         getEnv("BLOB_DIR", or(file.BlobDir, defaultBlobDir)),
		MongoURI:        getEnv("MONGO_URI", file.MongoURI),
		MongoDatabase:   getEnv("MONGO_DATABASE", or(file.MongoDatabase, defaultMongoDatabase)),
		MongoCollection: getEnv("MONGO_COLLECTION", or(file.MongoCollection, defaultMongoCollection)),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
	}

	var err error
	if cfg.SchemaVersion, err = intSetting("SCHEMA_VERSION", file.SchemaVersion, defaultSchemaVersion); err != nil {
		return Config{}, err
	}
	if cfg.MaxImageBytes, err = intSetting("MAX_IMAGE_BYTES", file.MaxImageBytes, defaultMaxImageBytes); err != nil {
		return Config{}, err
	}
	if cfg.ScanRateLimitPerMin, err = intSetting("SCAN_RATE_LIMIT_PER_MIN", file.ScanRateLimitPerMin, defaultScanRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.MaxConns, err = intSetting("MAX_CONNS", file.MaxConns, defaultMaxConns); err != nil {
		return Config{}, err
	}
	if v := getEnv("AUTO_MIGRATE", file.AutoMigrate); v != "" {
		cfg.AutoMigrate, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
		}
	}

	if cfg.ShutdownPeriod, err = durationSetting(shutdownSecondsEnvVar, shutdownDurationEnvVar, file.ShutdownTimeout, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationSetting(idemTTLSecondsEnvVar, idemTTLDurEnvVar, file.IdempotencyTTL, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.BlobBackend {
	case BlobBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when BLOB_BACKEND=%s", c.BlobBackend)
		}
	case BlobBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI must be set when BLOB_BACKEND=%s", c.BlobBackend)
		}
	case BlobBackendFile:
		if c.BlobDir == "" {
			return fmt.Errorf("BLOB_DIR must be set when BLOB_BACKEND=%s", c.BlobBackend)
		}
	case BlobBackendMemory:
		if !c.IsDev() {
			return fmt.Errorf("BLOB_BACKEND=%s is only allowed in development", c.BlobBackend)
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	if c.MaxImageBytes > payload.MaxFieldLength {
		return fmt.Errorf("MAX_IMAGE_BYTES must not exceed %d", payload.MaxFieldLength)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("MAX_CONNS must be positive")
	}

	if !c.IsDev() && c.DatabaseURL == "" && c.SQLitePath == "" {
		return fmt.Errorf("DATABASE_URL or SQLITE_PATH must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether in-memory fallbacks are acceptable.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func intSetting(key, fileValue string, fallback int) (int, error) {
	v := getEnv(key, fileValue)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// durationSetting prefers whole seconds, then a Go duration, then the file value.
func durationSetting(secondsKey, durationKey, fileValue string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	v := getEnv(durationKey, fileValue)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
