package planner

import (
	"context"
	"fmt"

	"github.com/arnavshah/screening-planner/pkg/models"
)

type userRoleKey struct {
	userID string
	role   models.Role
}

// ledger holds the assignments made earlier in the same run.
// It belongs to exactly one session and is never shared.
type ledger struct {
	byUser     map[string][]models.AssignmentRecord
	roleCounts map[userRoleKey]int
}

func newLedger() *ledger {
	return &ledger{
		byUser:     make(map[string][]models.AssignmentRecord),
		roleCounts: make(map[userRoleKey]int),
	}
}

func (l *ledger) add(rec models.AssignmentRecord) {
	l.byUser[rec.UserID] = append(l.byUser[rec.UserID], rec)
	l.roleCounts[userRoleKey{rec.UserID, rec.Role}]++
}

func (l *ledger) countInWindow(userID string, w models.Window) int {
	n := 0
	for _, rec := range l.byUser[userID] {
		if w.Contains(rec.StartsAt) {
			n++
		}
	}
	return n
}

func (l *ledger) countTitleInWindow(userID, filmID string, w models.Window) int {
	n := 0
	for _, rec := range l.byUser[userID] {
		if rec.FilmID == filmID && w.Contains(rec.StartsAt) {
			n++
		}
	}
	return n
}

func (l *ledger) roleCount(userID string, role models.Role) int {
	return l.roleCounts[userRoleKey{userID, role}]
}

// history answers persisted assignment counts for limit checks
type history interface {
	weekly(ctx context.Context, userID string, w models.Window) (int, error)
	titleMonthly(ctx context.Context, userID, filmID string, w models.Window) (int, error)
}

// preloadedHistory counts from one batch of assignment records
type preloadedHistory struct {
	byUser map[string][]models.AssignmentRecord
}

func newPreloadedHistory(records []models.AssignmentRecord) *preloadedHistory {
	h := &preloadedHistory{byUser: make(map[string][]models.AssignmentRecord)}
	for _, rec := range records {
		h.byUser[rec.UserID] = append(h.byUser[rec.UserID], rec)
	}
	return h
}

func (h *preloadedHistory) weekly(_ context.Context, userID string, w models.Window) (int, error) {
	n := 0
	for _, rec := range h.byUser[userID] {
		if w.Contains(rec.StartsAt) {
			n++
		}
	}
	return n, nil
}

func (h *preloadedHistory) titleMonthly(_ context.Context, userID, filmID string, w models.Window) (int, error) {
	n := 0
	for _, rec := range h.byUser[userID] {
		if rec.FilmID == filmID && w.Contains(rec.StartsAt) {
			n++
		}
	}
	return n, nil
}

type countKey struct {
	userID string
	filmID string
	start  int64
}

// countingHistory asks the store per volunteer and window, once per run
type countingHistory struct {
	store  DataStore
	weeks  map[countKey]int
	months map[countKey]int
}

func newCountingHistory(store DataStore) *countingHistory {
	return &countingHistory{
		store:  store,
		weeks:  make(map[countKey]int),
		months: make(map[countKey]int),
	}
}

func (h *countingHistory) weekly(ctx context.Context, userID string, w models.Window) (int, error) {
	key := countKey{userID: userID, start: w.Start.UnixNano()}
	if n, ok := h.weeks[key]; ok {
		return n, nil
	}
	n, err := h.store.CountAssignments(ctx, userID, w)
	if err != nil {
		return 0, fmt.Errorf("count weekly assignments for %s: %w", userID, err)
	}
	h.weeks[key] = n
	return n, nil
}

func (h *countingHistory) titleMonthly(ctx context.Context, userID, filmID string, w models.Window) (int, error) {
	key := countKey{userID: userID, filmID: filmID, start: w.Start.UnixNano()}
	if n, ok := h.months[key]; ok {
		return n, nil
	}
	n, err := h.store.CountAssignmentsForTitle(ctx, userID, filmID, w)
	if err != nil {
		return 0, fmt.Errorf("count title assignments for %s: %w", userID, err)
	}
	h.months[key] = n
	return n, nil
}
