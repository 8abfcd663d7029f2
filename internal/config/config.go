package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	TxMaxAttempts    int           `mapstructure:"TX_MAX_ATTEMPTS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	SlotCacheTTL     time.Duration `mapstructure:"SLOT_CACHE_TTL"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	TimeZone         string        `mapstructure:"TIME_ZONE"`
	ReminderInterval time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderInServer bool          `mapstructure:"REMINDER_IN_SERVER"`
	OTLPEndpoint     string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "TX_MAX_ATTEMPTS",
	"REDIS_URL", "SLOT_CACHE_TTL", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"TIME_ZONE", "REMINDER_INTERVAL", "REMINDER_IN_SERVER", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("SLOT_CACHE_TTL", "60s")
	v.SetDefault("TIME_ZONE", "Asia/Ho_Chi_Minh")
	v.SetDefault("REMINDER_INTERVAL", "15m")
	v.SetDefault("REMINDER_IN_SERVER", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves TIME_ZONE, the single canonical zone for dates, shift
// times and reminder windows.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
//
// The reminder window is one hour wide, so a sweep interval above one hour
// would skip bookings; such configurations are refused.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderInterval <= 0 || c.ReminderInterval > time.Hour {
		return fmt.Errorf("REMINDER_INTERVAL must be in (0, 1h], got %s", c.ReminderInterval)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", c.TxMaxAttempts)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	return nil
}
