package store

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

type fixture struct {
	db *gorm.DB
	t  *testing.T
}

func (f fixture) film(title string) string {
	row := database.Film{Title: title}
	require.NoError(f.t, f.db.Create(&row).Error)
	return row.ID
}

func (f fixture) screening(filmID string, startsAt time.Time) string {
	row := database.Screening{FilmID: filmID, StartsAt: startsAt, EndsAt: startsAt.Add(2 * time.Hour), Location: "Main Theater"}
	require.NoError(f.t, f.db.Create(&row).Error)
	return row.ID
}

func (f fixture) user(name string, active bool, roles ...models.Role) string {
	row := database.User{Name: name, Email: name + "@example.org"}
	for _, r := range roles {
		row.Roles = append(row.Roles, database.UserRole{Role: string(r)})
	}
	require.NoError(f.t, f.db.Create(&row).Error)
	if !active {
		require.NoError(f.t, f.db.Model(&row).Update("active", false).Error)
	}
	return row.ID
}

func (f fixture) assign(screeningID, userID string, role models.Role, createdAt time.Time) {
	require.NoError(f.t, f.db.Create(&database.Assignment{
		ScreeningID: screeningID,
		UserID:      userID,
		Role:        string(role),
		CreatedAt:   createdAt,
	}).Error)
}

func TestStore_ListScreenings(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	film := f.film("Stalker")
	late := f.screening(film, at(time.March, 5, 20))
	early := f.screening(film, at(time.March, 3, 20))
	f.screening(film, at(time.March, 5, 21))

	got, err := New(db).ListScreenings(context.Background(), at(time.March, 3, 20), at(time.March, 5, 20))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early, got[0].ID)
	assert.Equal(t, late, got[1].ID)
	assert.Equal(t, "Stalker", got[0].Title)
	assert.Equal(t, film, got[0].FilmID)
	assert.True(t, got[0].StartsAt.Equal(at(time.March, 3, 20)))
}

func TestStore_Candidates(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	s := New(db)
	ctx := context.Background()
	sc := f.screening(f.film("Ran"), at(time.March, 3, 20))

	ann := f.user("ann", true, models.RoleTechniek)
	ben := f.user("ben", true, models.RoleTechniek, models.RoleZaalwacht)
	f.user("cas", false, models.RoleTechniek)
	f.user("dik", true, models.RoleZaalwacht)

	require.NoError(t, db.Create(&database.Availability{ScreeningID: sc, UserID: ben, Role: "TECHNIEK", Status: "available"}).Error)
	require.NoError(t, db.Create(&database.Availability{ScreeningID: sc, UserID: ann, Role: "TECHNIEK", Status: "unavailable"}).Error)
	require.NoError(t, db.Create(&database.SkillTag{UserID: ben, Tag: "lead"}).Error)

	available, err := s.ListAvailability(ctx, sc, models.RoleTechniek, models.Available)
	require.NoError(t, err)
	assert.Equal(t, []string{ben}, available)

	vols, err := s.ListActiveVolunteersWithRole(ctx, models.RoleTechniek, nil)
	require.NoError(t, err)
	require.Len(t, vols, 2)
	assert.Equal(t, ann, vols[0].ID)
	assert.Equal(t, ben, vols[1].ID)
	assert.ElementsMatch(t, []models.Role{models.RoleTechniek, models.RoleZaalwacht}, vols[1].Roles)

	vols, err = s.ListActiveVolunteersWithRole(ctx, models.RoleTechniek, []string{ann})
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, ben, vols[0].ID)

	tags, err := s.SkillTags(ctx, []string{ann, ben})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{ben: {"lead"}}, tags)

	cands, err := planner.ResolveCandidates(ctx, s, sc, models.RoleTechniek, planner.ImplicitAvailable)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, ben, cands[0].UserID)
	assert.True(t, cands[0].Explicit)
}

func TestStore_History(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	s := New(db)
	ctx := context.Background()

	ran := f.film("Ran")
	ikiru := f.film("Ikiru")
	s1 := f.screening(ran, at(time.March, 3, 20))
	s2 := f.screening(ikiru, at(time.March, 5, 20))
	s3 := f.screening(ran, at(time.March, 12, 20))
	ann := f.user("ann", true, models.RoleTechniek)
	ben := f.user("ben", true, models.RoleTechniek)

	f.assign(s1, ann, models.RoleTechniek, at(time.February, 1, 9))
	f.assign(s2, ann, models.RoleZaalwacht, at(time.February, 3, 9))
	f.assign(s3, ann, models.RoleTechniek, at(time.February, 2, 9))
	f.assign(s3, ben, models.RoleTechniek, at(time.February, 4, 9))

	week := planner.WeekWindow(at(time.March, 4, 0), time.UTC)
	n, err := s.CountAssignments(ctx, ann, week)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	month := planner.MonthWindow(at(time.March, 4, 0), time.UTC)
	n, err = s.CountAssignmentsForTitle(ctx, ann, ran, month)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.ListAssignmentsInWindow(ctx, week)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, s1, recs[0].ScreeningID)
	assert.Equal(t, ran, recs[0].FilmID)
	assert.Equal(t, models.RoleZaalwacht, recs[1].Role)

	last, err := s.LastAssignedAt(ctx, []string{ann, ben, "nobody"})
	require.NoError(t, err)
	assert.Len(t, last, 2)
	assert.True(t, last[ann].Equal(at(time.February, 3, 9)))
	assert.True(t, last[ben].Equal(at(time.February, 4, 9)))

	existing, err := s.ListScreeningAssignments(ctx, s3)
	require.NoError(t, err)
	assert.Len(t, existing, 2)
}

func TestStore_Constraints(t *testing.T) {
	s := New(newTestDB(t))
	ctx := context.Background()

	_, ok, err := s.GetConstraint(ctx, planner.KeyMaxShiftsPerWeek)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConstraint(ctx, planner.KeyMaxShiftsPerWeek, "3"))
	require.NoError(t, s.SetConstraint(ctx, planner.KeyMaxShiftsPerWeek, "4"))

	v, ok, err := s.GetConstraint(ctx, planner.KeyMaxShiftsPerWeek)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestStore_BulkInsertSkipsDuplicates(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	s := New(db)
	sc := f.screening(f.film("Ran"), at(time.March, 3, 20))
	ann := f.user("ann", true, models.RoleTechniek)
	ben := f.user("ben", true, models.RoleTechniek)
	f.assign(sc, ann, models.RoleTechniek, at(time.February, 1, 9))

	n, err := s.BulkInsertAssignments(context.Background(), []models.Assignment{
		{ScreeningID: sc, UserID: ann, Role: models.RoleTechniek, Source: models.SourceAuto, CreatedAt: at(time.February, 2, 9)},
		{ScreeningID: sc, UserID: ben, Role: models.RoleTechniek, Source: models.SourceAuto, CreatedAt: at(time.February, 2, 9)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var rows []database.Assignment
	require.NoError(t, db.Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "manual", rows[0].Source)
	assert.Equal(t, "auto", rows[1].Source)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx planner.DataStore) error {
		require.NoError(t, tx.AppendAuditLog(ctx, models.AuditEntry{Action: "X", Entity: "Y", EntityID: "Z"}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	var n int64
	require.NoError(t, db.Model(&database.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestStore_PlannerCommit(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	s := New(db)
	ctx := context.Background()

	sc := f.screening(f.film("Ran"), at(time.March, 3, 20))
	for _, name := range []string{"ann", "ben"} {
		f.user(name, true, models.RoleTechniek)
	}
	for _, name := range []string{"cas", "dik"} {
		f.user(name, true, models.RoleZaalwacht)
	}

	p := planner.New(WithRetry(s, DefaultRetryPolicy()), planner.Options{})
	res, err := p.Run(ctx, planner.Request{
		RangeStart: at(time.March, 1, 0),
		RangeEnd:   at(time.March, 31, 0),
		ActorID:    "admin",
	})
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 4)
	assert.Empty(t, res.Deficits)
	assert.Equal(t, 4, res.Inserted)

	var n int64
	require.NoError(t, db.Model(&database.Assignment{}).Where("screening_id = ? AND source = ?", sc, "auto").Count(&n).Error)
	assert.Equal(t, int64(4), n)

	var logs []database.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, planner.AuditActionPlannerRun, logs[0].Action)
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(logs[0].Data), &data))
	assert.Equal(t, []any{sc}, data["screeningIds"])

	// a second commit finds every slot filled
	res, err = p.Run(ctx, planner.Request{RangeStart: at(time.March, 1, 0), RangeEnd: at(time.March, 31, 0)})
	require.NoError(t, err)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, 2, res.Filled)
}

// flakyStore refuses the first few ListScreenings calls
type flakyStore struct {
	*Store
	failures int
	calls    int
}

func (f *flakyStore) ListScreenings(ctx context.Context, start, end time.Time) ([]models.Screening, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("dial tcp 127.0.0.1:5432: %w", syscall.ECONNREFUSED)
	}
	return f.Store.ListScreenings(ctx, start, end)
}

func TestStore_PlannerSurvivesTransientFailures(t *testing.T) {
	db := newTestDB(t)
	f := fixture{db, t}
	f.screening(f.film("Ran"), at(time.March, 3, 20))
	f.user("ann", true, models.RoleTechniek)

	flaky := &flakyStore{Store: New(db), failures: 2}
	var retried []int
	policy := RetryPolicy{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(_ string, attempt int, _ error) { retried = append(retried, attempt) },
	}

	res, err := planner.New(WithRetry(flaky, policy), planner.Options{}).Run(context.Background(), planner.Request{
		RangeStart: at(time.March, 1, 0),
		RangeEnd:   at(time.March, 31, 0),
		DryRun:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Len(t, res.Assignments, 1)
}
