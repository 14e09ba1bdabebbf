// Command seed loads a YAML fixture into the planner database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/arnavshah/screening-planner/internal/config"
	"github.com/arnavshah/screening-planner/internal/logging"
	"github.com/arnavshah/screening-planner/pkg/auth"
	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/seed"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "fixtures/demo.yaml", "fixture file to load")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, "console", cfg.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	fixture, err := seed.ParseFile(*file)
	if err != nil {
		log.Fatal("could not read fixture", zap.String("file", *file), zap.Error(err))
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		log.Fatal("could not open database", zap.Error(err))
	}

	if _, err := auth.EnsureAdminExists(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("could not create admin", zap.Error(err))
	}

	sum, err := seed.Load(context.Background(), db, fixture)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("fixture loaded",
		zap.String("file", *file),
		zap.Int("films", sum.Films),
		zap.Int("volunteers", sum.Volunteers),
		zap.Int("screenings", sum.Screenings),
		zap.Int("availability", sum.Availability),
		zap.Int("assignments", sum.Assignments),
		zap.Int("constraints", sum.Constraints))
}
