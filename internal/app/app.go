// Package app wires configuration, storage and the planner for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/screening-planner/internal/config"
	"github.com/arnavshah/screening-planner/internal/metrics"
	"github.com/arnavshah/screening-planner/internal/runlock"
	"github.com/arnavshah/screening-planner/pkg/auth"
	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/handlers"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/arnavshah/screening-planner/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the long-lived dependencies of a process
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Store    *store.Store
	Planner  *planner.Planner
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Lock     runlock.Locker

	redis *redis.Client
}

// New opens the database and builds the planner on a retrying store
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return NewWithDB(cfg, log, db)
}

// NewWithDB builds the App on an already migrated connection
func NewWithDB(cfg *config.Config, log *zap.Logger, db *gorm.DB) (*App, error) {
	opts, err := cfg.PlannerOptions()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy := cfg.RetryPolicy()
	policy.OnRetry = func(op string, attempt int, err error) {
		m.ObserveRetry(op)
		log.Warn("retrying store call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s := store.New(db)
	a := &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Store:    s,
		Planner:  planner.New(store.WithRetry(s, policy), opts),
		Metrics:  m,
		Registry: reg,
		Lock:     runlock.NewLocal(),
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.Lock = runlock.NewRedis(a.redis, cfg.Planner.LockTTL)
		log.Info("using redis run lock", zap.String("addr", cfg.Redis.Addr))
	}
	return a, nil
}

// EnsureAdmin creates the configured admin account when none exists
func (a *App) EnsureAdmin() error {
	created, err := auth.EnsureAdminExists(a.DB, a.Config.AdminEmail, a.Config.AdminPassword)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		a.Log.Info("default admin user created", zap.String("email", a.Config.AdminEmail))
	}
	return nil
}

// Router builds the HTTP engine
func (a *App) Router() (*gin.Engine, error) {
	tokens, err := auth.NewManager(a.Config.JWTSecret, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	h := &handlers.Handler{
		DB:       a.DB,
		Planner:  a.Planner,
		Tokens:   tokens,
		Lock:     a.Lock,
		Metrics:  a.Metrics,
		Gatherer: a.Registry,
		Health:   a,
		Log:      a.Log,
	}
	return handlers.NewRouter(h), nil
}

// Close releases the database and redis connections
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

// Ping checks the database and, when configured, redis
func (a *App) Ping(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return err
	}
	if a.redis != nil {
		return a.redis.Ping(ctx).Err()
	}
	return nil
}
