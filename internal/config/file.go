package config

import "time"

// fileConfig mirrors Config with optional fields so that a YAML file only
// overrides the keys it sets.
type fileConfig struct {
	TfL struct {
		BaseURL     *string        `yaml:"baseURL"`
		MaxCalls    *int           `yaml:"maxCalls"`
		RatePeriod  *time.Duration `yaml:"ratePeriod"`
		Retries     *int           `yaml:"retries"`
		Backoff     *time.Duration `yaml:"backoff"`
		HTTPTimeout *time.Duration `yaml:"httpTimeout"`
		Concurrency *int           `yaml:"concurrency"`
	} `yaml:"tfl"`

	Reference struct {
		Stops      *string        `yaml:"stops"`
		StopPoints *string        `yaml:"stopPoints"`
		MaxAge     *time.Duration `yaml:"maxAge"`
	} `yaml:"reference"`

	Storage struct {
		SQLite       *string        `yaml:"sqlite"`
		PostgresURL  *string        `yaml:"postgresURL"`
		MetricsTable *string        `yaml:"metricsTable"`
		Retention    *time.Duration `yaml:"retention"`
	} `yaml:"storage"`

	RunInterval    *time.Duration `yaml:"runInterval"`
	AlertsFeedPath *string        `yaml:"alertsFeedPath"`
	Port           *string        `yaml:"port"`
	AllowedOrigins []string       `yaml:"allowedOrigins"`
}

func (f *fileConfig) apply(c *Config) error {
	setString(&c.BaseURL, f.TfL.BaseURL)
	setInt(&c.RateLimitCalls, f.TfL.MaxCalls)
	setDuration(&c.RatePeriod, f.TfL.RatePeriod)
	setInt(&c.Retries, f.TfL.Retries)
	setDuration(&c.Backoff, f.TfL.Backoff)
	setDuration(&c.HTTPTimeout, f.TfL.HTTPTimeout)
	setInt(&c.Concurrency, f.TfL.Concurrency)

	setString(&c.StopsPath, f.Reference.Stops)
	setString(&c.StopPointsPath, f.Reference.StopPoints)
	setDuration(&c.ReferenceMaxAge, f.Reference.MaxAge)

	setString(&c.DatabasePath, f.Storage.SQLite)
	setString(&c.PostgresURL, f.Storage.PostgresURL)
	setString(&c.MetricsTable, f.Storage.MetricsTable)
	setDuration(&c.Retention, f.Storage.Retention)

	setDuration(&c.RunInterval, f.RunInterval)
	setString(&c.AlertsFeedPath, f.AlertsFeedPath)
	setString(&c.Port, f.Port)
	if len(f.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
