package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Appointment durations must stay inside the range the appointment table's
// check constraint accepts.
const (
	MinStoredDuration = 15
	MaxStoredDuration = 240
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DatabaseSchema     string        `mapstructure:"DATABASE_SCHEMA"`
	MongoDatabase      string        `mapstructure:"MONGO_DATABASE"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	LockTTL            time.Duration `mapstructure:"LOCK_TTL"`
	LockWait           time.Duration `mapstructure:"LOCK_WAIT"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	SlotIntervalMins   int           `mapstructure:"SLOT_INTERVAL_MINUTES"`
	BookingHorizonDays int           `mapstructure:"BOOKING_HORIZON_DAYS"`
	MinDurationMins    int           `mapstructure:"MIN_DURATION_MINUTES"`
	MaxDurationMins    int           `mapstructure:"MAX_DURATION_MINUTES"`
	TLSEnabled         bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string        `mapstructure:"TLS_KEY_FILE"`
}

var defaults = map[string]interface{}{
	"PORT":                  "8000",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"STORE_DRIVER":          DriverPostgres,
	"DATABASE_SCHEMA":       "public",
	"MONGO_DATABASE":        "docslot",
	"DB_MAX_CONNS":          20,
	"DB_MIN_CONNS":          5,
	"LOCK_TTL":              "10s",
	"LOCK_WAIT":             "5s",
	"CORS_ORIGINS":          "http://localhost:3000",
	"RATE_LIMIT_RPS":        100,
	"RATE_LIMIT_BURST":      200,
	"REQUEST_TIMEOUT":       "30s",
	"BODY_LIMIT":            "1M",
	"SLOT_INTERVAL_MINUTES": 30,
	"BOOKING_HORIZON_DAYS":  7,
	"MIN_DURATION_MINUTES":  15,
	"MAX_DURATION_MINUTES":  240,
}

var boundEnv = []string{"DATABASE_URL", "REDIS_URL", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE"}

// Load reads configuration from the environment, with an optional .env file
// in the working directory underneath it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}
	// Unmarshal only sees keys viper knows about.
	for _, key := range boundEnv {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The decode hook splits on commas without trimming.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SlotInterval is the slot grid step.
func (c *Config) SlotInterval() time.Duration {
	return time.Duration(c.SlotIntervalMins) * time.Minute
}

// Validate checks that the configuration is usable before anything connects.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMongo, c.StoreDriver)
	}
	if c.SlotIntervalMins <= 0 {
		return fmt.Errorf("SLOT_INTERVAL_MINUTES must be positive, got %d", c.SlotIntervalMins)
	}
	if c.MinDurationMins < MinStoredDuration || c.MaxDurationMins > MaxStoredDuration ||
		c.MaxDurationMins < c.MinDurationMins {
		return fmt.Errorf("duration bounds invalid: MIN_DURATION_MINUTES=%d MAX_DURATION_MINUTES=%d, want %d <= min <= max <= %d",
			c.MinDurationMins, c.MaxDurationMins, MinStoredDuration, MaxStoredDuration)
	}
	if c.BookingHorizonDays <= 0 {
		return fmt.Errorf("BOOKING_HORIZON_DAYS must be positive, got %d", c.BookingHorizonDays)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RedisURL != "" && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive when REDIS_URL is set")
	}
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
