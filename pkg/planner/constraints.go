package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	KeyMaxShiftsPerWeek     = "max_shifts_per_week"
	KeyMaxSameTitlePerMonth = "max_same_title_per_month"

	// older deployments stored the monthly limit under this key
	legacyKeyMaxSameFilmPerMonth = "max_same_film_per_month"

	DefaultMaxShiftsPerWeek     = 2
	DefaultMaxSameTitlePerMonth = 2
)

// Limits are the numeric policy values enforced during planning
type Limits struct {
	MaxShiftsPerWeek     int `json:"maxShiftsPerWeek"`
	MaxSameTitlePerMonth int `json:"maxSameTitlePerMonth"`
}

// DefaultLimits returns the hard-coded fallbacks
func DefaultLimits() Limits {
	return Limits{
		MaxShiftsPerWeek:     DefaultMaxShiftsPerWeek,
		MaxSameTitlePerMonth: DefaultMaxSameTitlePerMonth,
	}
}

// LoadLimits reads the planner limits, falling back to defaults for keys that
// are absent or hold something other than a non-negative integer.
func LoadLimits(ctx context.Context, r ConstraintReader) (Limits, error) {
	weekly, err := constraintValue(ctx, r, DefaultMaxShiftsPerWeek, KeyMaxShiftsPerWeek)
	if err != nil {
		return Limits{}, err
	}
	monthly, err := constraintValue(ctx, r, DefaultMaxSameTitlePerMonth, KeyMaxSameTitlePerMonth, legacyKeyMaxSameFilmPerMonth)
	if err != nil {
		return Limits{}, err
	}
	return Limits{MaxShiftsPerWeek: weekly, MaxSameTitlePerMonth: monthly}, nil
}

// constraintValue returns the first usable value among keys
func constraintValue(ctx context.Context, r ConstraintReader, fallback int, keys ...string) (int, error) {
	for _, key := range keys {
		raw, ok, err := r.GetConstraint(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("read constraint %s: %w", key, err)
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			continue
		}
		return n, nil
	}
	return fallback, nil
}
