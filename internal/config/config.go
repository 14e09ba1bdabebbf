// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/arnavshah/screening-planner/pkg/store"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the binaries read
type Config struct {
	Port    string `env:"PORT" envDefault:"8000"`
	GinMode string `env:"GIN_MODE"`

	DatabaseURL string `env:"DATABASE_URL"`
	DataPath    string `env:"DATA_PATH" envDefault:"planner.db"`

	JWTSecret     string `env:"JWT_SECRET"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.org"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin123"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"screening-planner"`

	Planner PlannerConfig
	Redis   RedisConfig
}

// PlannerConfig maps to planner.Options and the store retry policy
type PlannerConfig struct {
	Timezone                 string        `env:"PLANNER_TIMEZONE" envDefault:"UTC"`
	RetryAttempts            int           `env:"PLANNER_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay               time.Duration `env:"PLANNER_RETRY_DELAY" envDefault:"300ms"`
	ExplicitAvailabilityOnly bool          `env:"PLANNER_EXPLICIT_AVAILABILITY_ONLY" envDefault:"false"`
	AllowDoubleBooking       bool          `env:"PLANNER_ALLOW_DOUBLE_BOOKING" envDefault:"false"`
	PerCandidateCounts       bool          `env:"PLANNER_PER_CANDIDATE_COUNTS" envDefault:"false"`
	LockTTL                  time.Duration `env:"PLANNER_LOCK_TTL" envDefault:"5m"`
}

// RedisConfig enables the shared run lock when Addr is set
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// envPaths are tried in order; the first existing file wins
var envPaths = []string{".env", "../.env", "../../.env"}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}
	return Parse()
}

// Parse reads the process environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the planner cannot run with
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Planner.Timezone); err != nil {
		return fmt.Errorf("invalid PLANNER_TIMEZONE %q: %w", c.Planner.Timezone, err)
	}
	if c.Planner.RetryAttempts < 1 {
		return errors.New("PLANNER_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Planner.RetryDelay < 0 {
		return errors.New("PLANNER_RETRY_DELAY must not be negative")
	}
	return nil
}

// PlannerOptions converts the settings into planner options
func (c *Config) PlannerOptions() (planner.Options, error) {
	loc, err := time.LoadLocation(c.Planner.Timezone)
	if err != nil {
		return planner.Options{}, err
	}
	policy := planner.ImplicitAvailable
	if c.Planner.ExplicitAvailabilityOnly {
		policy = planner.ExplicitOnly
	}
	return planner.Options{
		AvailabilityPolicy: policy,
		AllowDoubleBooking: c.Planner.AllowDoubleBooking,
		PerCandidateCounts: c.Planner.PerCandidateCounts,
		Location:           loc,
	}, nil
}

// RetryPolicy converts the settings into a store retry policy
func (c *Config) RetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{
		Attempts: c.Planner.RetryAttempts,
		Delay:    c.Planner.RetryDelay,
	}
}
