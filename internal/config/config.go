package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the bus metrics poller
type Config struct {
	// TfL API
	BaseURL        string        `yaml:"baseURL" validate:"required,url"`
	RateLimitCalls int           `yaml:"rateLimitCalls" validate:"gte=1,lte=500"`
	RatePeriod     time.Duration `yaml:"ratePeriod" validate:"gte=1s"`
	Retries        int           `yaml:"retries" validate:"gte=1,lte=10"`
	Backoff        time.Duration `yaml:"backoff" validate:"gte=0"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout" validate:"gte=1s"`
	Concurrency    int           `yaml:"concurrency" validate:"gte=1,lte=64"`

	// Static reference data
	StopsPath       string        `yaml:"stopsPath" validate:"required"`
	StopPointsPath  string        `yaml:"stopPointsPath" validate:"required"`
	ReferenceMaxAge time.Duration `yaml:"referenceMaxAge" validate:"gte=0"`

	// Storage
	DatabasePath string        `yaml:"databasePath" validate:"required"`
	PostgresURL  string        `yaml:"postgresURL"`
	MetricsTable string        `yaml:"metricsTable" validate:"required,sqlident"`
	Retention    time.Duration `yaml:"retention" validate:"gte=0"`

	// Scheduling
	RunInterval time.Duration `yaml:"runInterval" validate:"gte=1m"`

	// Outputs
	AlertsFeedPath string   `yaml:"alertsFeedPath"`
	Port           string   `yaml:"port" validate:"required,numeric"`
	AllowedOrigins []string `yaml:"allowedOrigins" validate:"min=1"`
}

// Load reads configuration from .env, environment variables and an optional
// YAML file named by CONFIG_FILE, then validates the result.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	cfg := &Config{
		BaseURL:        getEnv("TFL_BASE_URL", "https://api.tfl.gov.uk"),
		RateLimitCalls: getEnvInt("TFL_MAX_CALLS", 40),
		RatePeriod:     time.Duration(getEnvInt("TFL_RATE_PERIOD_SECONDS", 60)) * time.Second,
		Retries:        getEnvInt("TFL_RETRIES", 3),
		Backoff:        time.Duration(getEnvInt("TFL_BACKOFF_SECONDS", 2)) * time.Second,
		HTTPTimeout:    time.Duration(getEnvInt("TFL_HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		Concurrency:    getEnvInt("FETCH_CONCURRENCY", 5),

		StopsPath:       getEnv("STOPS_CSV", "data/Stops.csv"),
		StopPointsPath:  getEnv("STOP_POINTS_CSV", "data/stop_points.csv"),
		ReferenceMaxAge: time.Duration(getEnvInt("REFERENCE_MAX_AGE_DAYS", 90)) * 24 * time.Hour,

		DatabasePath: getEnv("SQLITE_DATABASE", "data/bus_metrics.db"),
		PostgresURL:  getEnv("DATABASE_URL", ""),
		MetricsTable: getEnv("METRICS_TABLE", "bus_performance_metrics"),
		Retention:    time.Duration(getEnvInt("RETENTION_DAYS", 30)) * 24 * time.Hour,

		RunInterval: time.Duration(getEnvInt("RUN_INTERVAL_HOURS", 24)) * time.Hour,

		AlertsFeedPath: getEnv("ALERTS_FEED_PATH", ""),
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies values present in a YAML file on top of cfg.
// Durations are written the way time.ParseDuration reads them ("90s", "24h").
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return file.apply(c)
}

// Validate checks field ranges and formats
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("sqlident", validateSQLIdentifier); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validateSQLIdentifier accepts lowercase table names safe to splice into DDL
func validateSQLIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
