package planner

import (
	"context"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// limitChecker enforces the weekly and same-title monthly limits against
// persisted history plus the run-local ledger.
type limitChecker struct {
	history history
	ledger  *ledger
	limits  Limits
	loc     *time.Location
}

// allows reports whether assigning userID to s keeps both limits intact
func (c *limitChecker) allows(ctx context.Context, userID string, s models.Screening) (bool, error) {
	week := WeekWindow(s.StartsAt, c.loc)
	weekly, err := c.history.weekly(ctx, userID, week)
	if err != nil {
		return false, err
	}
	if weekly+c.ledger.countInWindow(userID, week) >= c.limits.MaxShiftsPerWeek {
		return false, nil
	}

	month := MonthWindow(s.StartsAt, c.loc)
	monthly, err := c.history.titleMonthly(ctx, userID, s.FilmID, month)
	if err != nil {
		return false, err
	}
	if monthly+c.ledger.countTitleInWindow(userID, s.FilmID, month) >= c.limits.MaxSameTitlePerMonth {
		return false, nil
	}
	return true, nil
}

// filter drops candidates that would breach a limit. Order is preserved.
func (c *limitChecker) filter(ctx context.Context, candidates []Candidate, s models.Screening) ([]Candidate, error) {
	out := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		ok, err := c.allows(ctx, cand.UserID, s)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cand)
		}
	}
	return out, nil
}

// excludeUsers removes candidates whose id is in taken
func excludeUsers(candidates []Candidate, taken map[string]bool) []Candidate {
	if len(taken) == 0 {
		return candidates
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !taken[c.UserID] {
			out = append(out, c)
		}
	}
	return out
}
