package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Defaults applied to empty fields.
const (
	DefaultTimezone          = "Asia/Tokyo"
	DefaultRankingCycle      = "@daily 00:00"
	DefaultGlobalLeaderboard = "@every 2h"
	DefaultRollover          = "@monthly"
	DefaultTopicPrefix       = "photoseason.jobs"
	DefaultHTTPAddress       = ":8080"
	DefaultJobTimeout        = 30 * time.Minute
	DefaultMaxBatchMutations = 500
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Firestore     FirestoreConfig     `yaml:"firestore"`
	Store         StoreConfig         `yaml:"store"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds the River job queue database.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds the trigger subscription. An empty URL disables triggers.
type NATSConfig struct {
	URL         string `yaml:"url"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// FirestoreConfig holds the document store connection.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

// StoreConfig controls how jobs write to the document store.
type StoreConfig struct {
	Driver     string  `yaml:"driver"`
	BatchLimit int     `yaml:"batch_limit"`
	WriteRate  float64 `yaml:"write_rate"` // commits per second; 0 disables throttling
	WriteBurst int     `yaml:"write_burst"`
}

// ScheduleConfig holds periodic job schedules, evaluated in Timezone.
type ScheduleConfig struct {
	Disabled            bool          `yaml:"disabled"`
	Timezone            string        `yaml:"timezone"`
	RankingCycle        string        `yaml:"ranking_cycle"`
	GlobalLeaderboard   string        `yaml:"global_leaderboard"`
	Rollover            string        `yaml:"rollover"`
	JobTimeout          time.Duration `yaml:"job_timeout"`
	RankingMaxAttempts  int           `yaml:"ranking_max_attempts"`
	RolloverMaxAttempts int           `yaml:"rollover_max_attempts"`
}

// HTTPConfig holds the read and admin API listener. Read routes are limited
// per client IP, admin routes per token subject.
type HTTPConfig struct {
	Address        string  `yaml:"address"`
	RateLimit      float64 `yaml:"rate_limit"`
	RateBurst      int     `yaml:"rate_burst"`
	AdminRateLimit float64 `yaml:"admin_rate_limit"`
	AdminRateBurst int     `yaml:"admin_rate_burst"`
}

// JWTConfig holds admin token settings.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment    string  `yaml:"environment"`
	LogLevel       string  `yaml:"log_level"`
	MetricsAddress string  `yaml:"metrics_address"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"` // host:port of an OTLP/gRPC collector; empty disables tracing
	OTLPInsecure   bool    `yaml:"otlp_insecure"`
	SampleRate     float64 `yaml:"sample_rate"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("DATABASE_URL", &cfg.Postgres.DSN)
	str("NATS_URL", &cfg.NATS.URL)
	str("NATS_TOPIC_PREFIX", &cfg.NATS.TopicPrefix)

	str("GOOGLE_CLOUD_PROJECT", &cfg.Firestore.ProjectID)
	str("FIRESTORE_PROJECT_ID", &cfg.Firestore.ProjectID)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.Firestore.CredentialsFile)
	str("FIRESTORE_EMULATOR_HOST", &cfg.Firestore.EmulatorHost)

	str("STORE_DRIVER", &cfg.Store.Driver)
	integer("STORE_BATCH_LIMIT", &cfg.Store.BatchLimit)
	float("STORE_WRITE_RATE", &cfg.Store.WriteRate)
	integer("STORE_WRITE_BURST", &cfg.Store.WriteBurst)

	if v := os.Getenv("SCHEDULE_DISABLED"); v != "" {
		cfg.Schedule.Disabled = v == "true"
	}
	str("SCHEDULE_TIMEZONE", &cfg.Schedule.Timezone)
	str("SCHEDULE_RANKING_CYCLE", &cfg.Schedule.RankingCycle)
	str("SCHEDULE_GLOBAL_LEADERBOARD", &cfg.Schedule.GlobalLeaderboard)
	str("SCHEDULE_ROLLOVER", &cfg.Schedule.Rollover)
	duration("JOB_TIMEOUT", &cfg.Schedule.JobTimeout)

	str("HTTP_ADDRESS", &cfg.HTTP.Address)
	float("HTTP_RATE_LIMIT", &cfg.HTTP.RateLimit)
	integer("HTTP_RATE_BURST", &cfg.HTTP.RateBurst)
	float("HTTP_ADMIN_RATE_LIMIT", &cfg.HTTP.AdminRateLimit)
	integer("HTTP_ADMIN_RATE_BURST", &cfg.HTTP.AdminRateBurst)

	str("JWT_SECRET", &cfg.JWT.Secret)
	duration("JWT_DEFAULT_TTL", &cfg.JWT.DefaultTTL)

	str("ENV", &cfg.Observability.Environment)
	str("LOG_LEVEL", &cfg.Observability.LogLevel)
	str("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	str("OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	if v := os.Getenv("OTLP_INSECURE"); v != "" {
		cfg.Observability.OTLPInsecure = v == "true"
	}
	float("TRACE_SAMPLE_RATE", &cfg.Observability.SampleRate)

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.NATS.TopicPrefix == "" {
		c.NATS.TopicPrefix = DefaultTopicPrefix
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreFirestore
	}
	if c.Store.BatchLimit == 0 {
		c.Store.BatchLimit = DefaultMaxBatchMutations
	}
	if c.Store.WriteBurst == 0 {
		c.Store.WriteBurst = 1
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = DefaultTimezone
	}
	if c.Schedule.RankingCycle == "" {
		c.Schedule.RankingCycle = DefaultRankingCycle
	}
	if c.Schedule.GlobalLeaderboard == "" {
		c.Schedule.GlobalLeaderboard = DefaultGlobalLeaderboard
	}
	if c.Schedule.Rollover == "" {
		c.Schedule.Rollover = DefaultRollover
	}
	if c.Schedule.JobTimeout == 0 {
		c.Schedule.JobTimeout = DefaultJobTimeout
	}
	if c.Schedule.RankingMaxAttempts == 0 {
		c.Schedule.RankingMaxAttempts = 3
	}
	if c.Schedule.RolloverMaxAttempts == 0 {
		c.Schedule.RolloverMaxAttempts = 1
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = DefaultHTTPAddress
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 5
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 10
	}
	if c.HTTP.AdminRateLimit == 0 {
		c.HTTP.AdminRateLimit = 0.5
	}
	if c.HTTP.AdminRateBurst == 0 {
		c.HTTP.AdminRateBurst = 5
	}
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = time.Hour
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = "development"
	}
	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1
	}
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore.project_id is required for the firestore store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.BatchLimit < 1 || c.Store.BatchLimit > DefaultMaxBatchMutations {
		errs = append(errs, fmt.Errorf("store.batch_limit must be within 1..%d, got %d", DefaultMaxBatchMutations, c.Store.BatchLimit))
	}
	if c.Store.WriteRate < 0 {
		errs = append(errs, errors.New("store.write_rate must not be negative"))
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.sample_rate must be within 0..1, got %g", c.Observability.SampleRate))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location loads the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}
