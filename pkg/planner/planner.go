// Package planner assigns volunteers to screenings.
//
// A run walks the screenings of a date range in start order and, for every
// staffed role in a fixed order, fills the open slots with the best ranked
// eligible volunteers. Volunteers picked earlier in the run count toward the
// weekly and monthly limits of later screenings, so the walk is strictly
// sequential. Shortfalls are reported as deficits, not errors.
//
// A Planner holds no run state and may be shared; each Run owns its ledgers.
// Concurrent commit runs over overlapping ranges must be serialized by the
// caller.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// ErrInvalidRange is returned when the requested range is empty or inverted
var ErrInvalidRange = errors.New("planner: invalid range")

// Request is the input of a planning run. The range is inclusive.
type Request struct {
	RangeStart time.Time `json:"rangeStart"`
	RangeEnd   time.Time `json:"rangeEnd"`
	DryRun     bool      `json:"dryRun"`
	ActorID    string    `json:"-"`
}

// PlannedAssignment is one assignment produced by a run
type PlannedAssignment struct {
	ScreeningID string      `json:"screeningId"`
	UserID      string      `json:"userId"`
	Role        models.Role `json:"role"`
}

// StaffedVolunteer is a planned assignment joined with the volunteer name
type StaffedVolunteer struct {
	UserID   string      `json:"userId"`
	UserName string      `json:"userName"`
	Role     models.Role `json:"role"`
}

// ScreeningPlan is the presentation view of one screening in the range
type ScreeningPlan struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	StartsAt    time.Time          `json:"startsAt"`
	Location    string             `json:"location"`
	Assignments []StaffedVolunteer `json:"assignments"`
}

// Result is the outcome of a planning run
type Result struct {
	Assignments []PlannedAssignment `json:"assignments"`
	Deficits    []models.Deficit    `json:"deficits"`
	Screenings  []ScreeningPlan     `json:"screenings"`
	Limits      Limits              `json:"limits"`
	// Filled counts screening roles that reached the needed headcount
	Filled      int  `json:"filled"`
	Committed   bool `json:"committed"`
	Inserted    int  `json:"inserted"`
}

// Planner runs planning passes against a DataStore
type Planner struct {
	store DataStore
	opts  Options
}

// New creates a planner. Zero option fields take their defaults.
func New(store DataStore, opts Options) *Planner {
	return &Planner{store: store, opts: opts.withDefaults()}
}

// Options returns the effective options
func (p *Planner) Options() Options {
	return p.opts
}

// Run plans every screening in the request range. Unless DryRun is set the
// new assignments are persisted before Run returns.
func (p *Planner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RangeStart.IsZero() || req.RangeEnd.IsZero() || req.RangeEnd.Before(req.RangeStart) {
		return nil, ErrInvalidRange
	}

	screenings, err := p.store.ListScreenings(ctx, req.RangeStart, req.RangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	sort.SliceStable(screenings, func(i, j int) bool {
		if !screenings[i].StartsAt.Equal(screenings[j].StartsAt) {
			return screenings[i].StartsAt.Before(screenings[j].StartsAt)
		}
		return screenings[i].ID < screenings[j].ID
	})

	limits, err := LoadLimits(ctx, p.store)
	if err != nil {
		return nil, err
	}

	s, err := p.newSession(ctx, req, screenings, limits)
	if err != nil {
		return nil, err
	}
	for _, sc := range screenings {
		if err := s.planScreening(ctx, sc); err != nil {
			return nil, err
		}
	}

	res := s.result(screenings)
	if !req.DryRun {
		n, err := p.commit(ctx, s.planned, req.ActorID)
		if err != nil {
			return nil, err
		}
		res.Committed = true
		res.Inserted = n
	}
	return res, nil
}

// session is the state of a single run
type session struct {
	p         *Planner
	limits    Limits
	checker   *limitChecker
	ledger    *ledger
	persisted map[userRoleKey]int
	deficits  deficitReport
	planned   []PlannedAssignment
	names     map[string]string
	filled    int
}

func (p *Planner) newSession(ctx context.Context, req Request, screenings []models.Screening, limits Limits) (*session, error) {
	rangeWindow := inclusiveWindow(req.RangeStart, req.RangeEnd)
	preload := rangeWindow
	if !p.opts.PerCandidateCounts && len(screenings) > 0 {
		preload = union(preload, historyEnvelope(screenings, p.opts.Location))
	}

	records, err := p.store.ListAssignmentsInWindow(ctx, preload)
	if err != nil {
		return nil, fmt.Errorf("preload assignments: %w", err)
	}
	persisted := make(map[userRoleKey]int)
	for _, rec := range records {
		if rangeWindow.Contains(rec.StartsAt) {
			persisted[userRoleKey{rec.UserID, rec.Role}]++
		}
	}

	var hist history
	if p.opts.PerCandidateCounts {
		hist = newCountingHistory(p.store)
	} else {
		hist = newPreloadedHistory(records)
	}

	l := newLedger()
	return &session{
		p:      p,
		limits: limits,
		checker: &limitChecker{
			history: hist,
			ledger:  l,
			limits:  limits,
			loc:     p.opts.Location,
		},
		ledger:    l,
		persisted: persisted,
		names:     make(map[string]string),
	}, nil
}

func (s *session) planScreening(ctx context.Context, sc models.Screening) error {
	existing, err := s.p.store.ListScreeningAssignments(ctx, sc.ID)
	if err != nil {
		return fmt.Errorf("list assignments for screening %s: %w", sc.ID, err)
	}
	onScreening := append([]models.Assignment(nil), existing...)
	for _, role := range s.p.opts.Roles {
		added, err := s.planRole(ctx, sc, role, onScreening)
		if err != nil {
			return err
		}
		onScreening = append(onScreening, added...)
	}
	return nil
}

// planRole fills the open slots of one screening role and records a deficit
// when it cannot.
func (s *session) planRole(ctx context.Context, sc models.Screening, role models.Role, onScreening []models.Assignment) ([]models.Assignment, error) {
	needed := s.p.opts.Needed
	current := 0
	taken := make(map[string]bool)
	for _, a := range onScreening {
		switch {
		case a.Role == role:
			current++
			taken[a.UserID] = true
		case !s.p.opts.AllowDoubleBooking:
			taken[a.UserID] = true
		}
	}
	if current >= needed {
		s.filled++
		return nil, nil
	}
	open := needed - current

	candidates, err := ResolveCandidates(ctx, s.p.store, sc.ID, role, s.p.opts.AvailabilityPolicy)
	if err != nil {
		return nil, err
	}
	eligible, err := s.checker.filter(ctx, excludeUsers(candidates, taken), sc)
	if err != nil {
		return nil, err
	}

	var last map[string]time.Time
	if len(eligible) > 0 {
		last, err = s.p.store.LastAssignedAt(ctx, candidateIDs(eligible))
		if err != nil {
			return nil, fmt.Errorf("load last assignment times: %w", err)
		}
	}
	ranked := rankCandidates(eligible, rankInput{
		role:      role,
		persisted: s.persisted,
		ledger:    s.ledger,
		last:      last,
	})

	var added []models.Assignment
	for _, c := range ranked {
		if len(added) >= open {
			break
		}
		// earlier picks in this loop may have used up c's allowance
		ok, err := s.checker.allows(ctx, c.UserID, sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s.accept(sc, role, c)
		added = append(added, models.Assignment{ScreeningID: sc.ID, UserID: c.UserID, Role: role})
	}

	if total := current + len(added); total < needed {
		s.deficits.record(sc.ID, role, needed, total)
	} else {
		s.filled++
	}
	return added, nil
}

func (s *session) accept(sc models.Screening, role models.Role, c Candidate) {
	s.ledger.add(models.AssignmentRecord{
		ScreeningID: sc.ID,
		UserID:      c.UserID,
		Role:        role,
		FilmID:      sc.FilmID,
		StartsAt:    sc.StartsAt,
	})
	s.planned = append(s.planned, PlannedAssignment{ScreeningID: sc.ID, UserID: c.UserID, Role: role})
	s.names[c.UserID] = c.Name
}

func (s *session) result(screenings []models.Screening) *Result {
	byScreening := make(map[string][]StaffedVolunteer)
	for _, a := range s.planned {
		name := s.names[a.UserID]
		if name == "" {
			name = "Unknown"
		}
		byScreening[a.ScreeningID] = append(byScreening[a.ScreeningID], StaffedVolunteer{
			UserID:   a.UserID,
			UserName: name,
			Role:     a.Role,
		})
	}

	views := make([]ScreeningPlan, len(screenings))
	for i, sc := range screenings {
		staffed := byScreening[sc.ID]
		if staffed == nil {
			staffed = []StaffedVolunteer{}
		}
		views[i] = ScreeningPlan{
			ID:          sc.ID,
			Title:       sc.Title,
			StartsAt:    sc.StartsAt,
			Location:    sc.Location,
			Assignments: staffed,
		}
	}

	planned := s.planned
	if planned == nil {
		planned = []PlannedAssignment{}
	}
	return &Result{
		Assignments: planned,
		Deficits:    s.deficits.list(),
		Screenings:  views,
		Limits:      s.limits,
		Filled:      s.filled,
	}
}

// historyEnvelope covers every week and month window the screenings touch.
// screenings must be sorted by start.
func historyEnvelope(screenings []models.Screening, loc *time.Location) models.Window {
	first := screenings[0].StartsAt
	last := screenings[len(screenings)-1].StartsAt
	return union(
		union(WeekWindow(first, loc), MonthWindow(first, loc)),
		union(WeekWindow(last, loc), MonthWindow(last, loc)),
	)
}

func union(a, b models.Window) models.Window {
	out := a
	if b.Start.Before(out.Start) {
		out.Start = b.Start
	}
	if b.End.After(out.End) {
		out.End = b.End
	}
	return out
}
