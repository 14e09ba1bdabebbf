// Command plan runs the planner once from the command line and prints the
// result as JSON. Without -commit nothing is written.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/screening-planner/internal/app"
	"github.com/arnavshah/screening-planner/internal/config"
	"github.com/arnavshah/screening-planner/internal/logging"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func main() {
	from := flag.String("from", "", "range start, RFC3339 or YYYY-MM-DD")
	to := flag.String("to", "", "range end, RFC3339 or YYYY-MM-DD (a date covers the whole day)")
	commit := flag.Bool("commit", false, "persist the planned assignments")
	actor := flag.String("actor", "", "user id recorded in the audit log")
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

	loc, err := time.LoadLocation(cfg.Planner.Timezone)
	if err != nil {
		log.Fatal("invalid timezone", zap.Error(err))
	}
	start, err := parseBound(*from, loc, false)
	if err != nil {
		log.Fatal("invalid -from", zap.Error(err))
	}
	end, err := parseBound(*to, loc, true)
	if err != nil {
		log.Fatal("invalid -to", zap.Error(err))
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("could not initialise app", zap.Error(err))
	}
	defer a.Close()

	ctx := context.Background()
	if *commit {
		release, err := a.Lock.TryAcquire(ctx, "planner-commit")
		if err != nil {
			log.Fatal("could not acquire planner lock", zap.Error(err))
		}
		defer release(ctx)
	}

	res, err := a.Planner.Run(ctx, planner.Request{
		RangeStart: start,
		RangeEnd:   end,
		DryRun:     !*commit,
		ActorID:    *actor,
	})
	if err != nil {
		log.Fatal("planner run failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal("encode result", zap.Error(err))
	}
	log.Info("planner run finished",
		zap.Int("assignments", len(res.Assignments)),
		zap.Int("deficits", len(res.Deficits)),
		zap.Bool("committed", res.Committed),
		zap.Int("inserted", res.Inserted))
}

// parseBound accepts RFC3339 or a plain date in loc. A plain end date is
// extended to the last nanosecond of that day.
func parseBound(s string, loc *time.Location, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor %s", s, dateLayout)
	}
	if end {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}
