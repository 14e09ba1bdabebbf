package planner

import (
	"context"
	"errors"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

type availabilityRow struct {
	screeningID string
	userID      string
	role        models.Role
	status      models.AvailabilityStatus
}

// memStore is an in-memory DataStore. failures queues errors per operation
// name; each call pops one before doing real work.
type memStore struct {
	screenings   []models.Screening
	volunteers   []models.Volunteer
	availability []availabilityRow
	assignments  []models.Assignment
	skills       map[string][]string
	constraints  map[string]string
	audit        []models.AuditEntry

	failures map[string][]error
	calls    map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		skills:      map[string][]string{},
		constraints: map[string]string{},
		failures:    map[string][]error{},
		calls:       map[string]int{},
	}
}

func (m *memStore) hit(op string) error {
	m.calls[op]++
	if q := m.failures[op]; len(q) > 0 {
		m.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (m *memStore) addScreening(id, filmID string, startsAt time.Time) {
	m.screenings = append(m.screenings, models.Screening{
		ID:       id,
		FilmID:   filmID,
		Title:    "Film " + filmID,
		StartsAt: startsAt,
		EndsAt:   startsAt.Add(2 * time.Hour),
		Location: "Main Theater",
	})
}

func (m *memStore) addVolunteer(id, name string, roles ...models.Role) {
	m.volunteers = append(m.volunteers, models.Volunteer{ID: id, Name: name, Roles: roles, Active: true})
}

func (m *memStore) setAvailability(screeningID, userID string, role models.Role, status models.AvailabilityStatus) {
	m.availability = append(m.availability, availabilityRow{screeningID, userID, role, status})
}

func (m *memStore) assign(screeningID, userID string, role models.Role, createdAt time.Time) {
	m.assignments = append(m.assignments, models.Assignment{
		ScreeningID: screeningID,
		UserID:      userID,
		Role:        role,
		Source:      models.SourceManual,
		CreatedAt:   createdAt,
	})
}

func (m *memStore) screening(id string) (models.Screening, bool) {
	for _, s := range m.screenings {
		if s.ID == id {
			return s, true
		}
	}
	return models.Screening{}, false
}

func (m *memStore) records() []models.AssignmentRecord {
	var out []models.AssignmentRecord
	for _, a := range m.assignments {
		s, ok := m.screening(a.ScreeningID)
		if !ok {
			continue
		}
		out = append(out, models.AssignmentRecord{
			ScreeningID: a.ScreeningID,
			UserID:      a.UserID,
			Role:        a.Role,
			FilmID:      s.FilmID,
			StartsAt:    s.StartsAt,
			CreatedAt:   a.CreatedAt,
		})
	}
	return out
}

func (m *memStore) ListScreenings(_ context.Context, start, end time.Time) ([]models.Screening, error) {
	if err := m.hit("ListScreenings"); err != nil {
		return nil, err
	}
	var out []models.Screening
	for _, s := range m.screenings {
		if !s.StartsAt.Before(start) && !s.StartsAt.After(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListScreeningAssignments(_ context.Context, screeningID string) ([]models.Assignment, error) {
	if err := m.hit("ListScreeningAssignments"); err != nil {
		return nil, err
	}
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.ScreeningID == screeningID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListAvailability(_ context.Context, screeningID string, role models.Role, status models.AvailabilityStatus) ([]string, error) {
	if err := m.hit("ListAvailability"); err != nil {
		return nil, err
	}
	var out []string
	for _, a := range m.availability {
		if a.screeningID == screeningID && a.role == role && a.status == status {
			out = append(out, a.userID)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveVolunteersWithRole(_ context.Context, role models.Role, exclude []string) ([]models.Volunteer, error) {
	if err := m.hit("ListActiveVolunteersWithRole"); err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.Volunteer
	for _, v := range m.volunteers {
		if v.Active && v.HasRole(role) && !skip[v.ID] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) ListAssignmentsInWindow(_ context.Context, w models.Window) ([]models.AssignmentRecord, error) {
	if err := m.hit("ListAssignmentsInWindow"); err != nil {
		return nil, err
	}
	var out []models.AssignmentRecord
	for _, r := range m.records() {
		if w.Contains(r.StartsAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CountAssignments(_ context.Context, userID string, w models.Window) (int, error) {
	if err := m.hit("CountAssignments"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.records() {
		if r.UserID == userID && w.Contains(r.StartsAt) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountAssignmentsForTitle(_ context.Context, userID, filmID string, w models.Window) (int, error) {
	if err := m.hit("CountAssignmentsForTitle"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.records() {
		if r.UserID == userID && r.FilmID == filmID && w.Contains(r.StartsAt) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) LastAssignedAt(_ context.Context, userIDs []string) (map[string]time.Time, error) {
	if err := m.hit("LastAssignedAt"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	out := make(map[string]time.Time)
	for _, a := range m.assignments {
		if want[a.UserID] && a.CreatedAt.After(out[a.UserID]) {
			out[a.UserID] = a.CreatedAt
		}
	}
	return out, nil
}

func (m *memStore) SkillTags(_ context.Context, userIDs []string) (map[string][]string, error) {
	if err := m.hit("SkillTags"); err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, id := range userIDs {
		if tags, ok := m.skills[id]; ok {
			out[id] = tags
		}
	}
	return out, nil
}

func (m *memStore) GetConstraint(_ context.Context, key string) (string, bool, error) {
	if err := m.hit("GetConstraint"); err != nil {
		return "", false, err
	}
	v, ok := m.constraints[key]
	return v, ok, nil
}

func (m *memStore) BulkInsertAssignments(_ context.Context, rows []models.Assignment) (int, error) {
	if err := m.hit("BulkInsertAssignments"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		dup := false
		for _, a := range m.assignments {
			if a.ScreeningID == r.ScreeningID && a.UserID == r.UserID && a.Role == r.Role {
				dup = true
				break
			}
		}
		if !dup {
			m.assignments = append(m.assignments, r)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendAuditLog(_ context.Context, entry models.AuditEntry) error {
	if err := m.hit("AppendAuditLog"); err != nil {
		return err
	}
	m.audit = append(m.audit, entry)
	return nil
}

// txStore adds all-or-nothing commits on top of memStore
type txStore struct {
	*memStore
	txCalls int
}

func (t *txStore) WithinTx(_ context.Context, fn func(tx DataStore) error) error {
	t.txCalls++
	assignments := len(t.assignments)
	audit := len(t.audit)
	if err := fn(t.memStore); err != nil {
		t.assignments = t.assignments[:assignments]
		t.audit = t.audit[:audit]
		return err
	}
	return nil
}

var errBoom = errors.New("boom")

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

var fixedNow = at(2025, time.June, 1, 12)

func testOptions() Options {
	return Options{Now: func() time.Time { return fixedNow }}
}
