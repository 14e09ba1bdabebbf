package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 100

// Store implements planner.DataStore on top of gorm
type Store struct {
	db *gorm.DB
}

var (
	_ planner.DataStore  = (*Store)(nil)
	_ planner.Transactor = (*Store)(nil)
)

// New wraps an open gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithinTx runs fn with a store bound to a single transaction
func (s *Store) WithinTx(ctx context.Context, fn func(tx planner.DataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ListScreenings returns screenings starting within [start, end], earliest first
func (s *Store) ListScreenings(ctx context.Context, start, end time.Time) ([]models.Screening, error) {
	var rows []database.Screening
	err := s.db.WithContext(ctx).
		Preload("Film").
		Where("starts_at >= ? AND starts_at <= ?", start.UTC(), end.UTC()).
		Order("starts_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Screening, len(rows))
	for i, r := range rows {
		out[i] = models.Screening{
			ID:       r.ID,
			FilmID:   r.FilmID,
			Title:    r.Film.Title,
			StartsAt: r.StartsAt,
			EndsAt:   r.EndsAt,
			Location: r.Location,
		}
	}
	return out, nil
}

// ListScreeningAssignments returns every persisted assignment of a screening, manual ones included
func (s *Store) ListScreeningAssignments(ctx context.Context, screeningID string) ([]models.Assignment, error) {
	var rows []database.Assignment
	err := s.db.WithContext(ctx).
		Where("screening_id = ?", screeningID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Assignment, len(rows))
	for i, r := range rows {
		out[i] = toAssignment(r)
	}
	return out, nil
}

// ListAvailability returns user ids with the given answer, oldest answer first
func (s *Store) ListAvailability(ctx context.Context, screeningID string, role models.Role, status models.AvailabilityStatus) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&database.Availability{}).
		Where("screening_id = ? AND role = ? AND status = ?", screeningID, string(role), string(status)).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ListActiveVolunteersWithRole returns active users holding role, minus excludeUserIDs
func (s *Store) ListActiveVolunteersWithRole(ctx context.Context, role models.Role, excludeUserIDs []string) ([]models.Volunteer, error) {
	q := s.db.WithContext(ctx).
		Model(&database.User{}).
		Select("users.*").
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role = ? AND users.active = ?", string(role), true)
	if len(excludeUserIDs) > 0 {
		q = q.Where("users.id NOT IN ?", excludeUserIDs)
	}

	var users []database.User
	if err := q.Preload("Roles").Order("users.created_at ASC").Order("users.id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	out := make([]models.Volunteer, len(users))
	for i, u := range users {
		out[i] = toVolunteer(u)
	}
	return out, nil
}

type recordRow struct {
	ScreeningID string
	UserID      string
	Role        string
	FilmID      string
	StartsAt    time.Time
	CreatedAt   time.Time
}

// ListAssignmentsInWindow returns assignments whose screening starts within w
func (s *Store) ListAssignmentsInWindow(ctx context.Context, w models.Window) ([]models.AssignmentRecord, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Table("assignments").
		Select("assignments.screening_id, assignments.user_id, assignments.role, screenings.film_id, screenings.starts_at, assignments.created_at").
		Joins("JOIN screenings ON screenings.id = assignments.screening_id").
		Where("screenings.starts_at >= ? AND screenings.starts_at < ?", w.Start.UTC(), w.End.UTC()).
		Order("screenings.starts_at ASC").
		Order("assignments.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.AssignmentRecord, len(rows))
	for i, r := range rows {
		out[i] = models.AssignmentRecord{
			ScreeningID: r.ScreeningID,
			UserID:      r.UserID,
			Role:        models.Role(r.Role),
			FilmID:      r.FilmID,
			StartsAt:    r.StartsAt,
			CreatedAt:   r.CreatedAt,
		}
	}
	return out, nil
}

// CountAssignments counts a user's assignments in any role within w
func (s *Store) CountAssignments(ctx context.Context, userID string, w models.Window) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&database.Assignment{}).
		Joins("JOIN screenings ON screenings.id = assignments.screening_id").
		Where("assignments.user_id = ? AND screenings.starts_at >= ? AND screenings.starts_at < ?", userID, w.Start.UTC(), w.End.UTC()).
		Count(&n).Error
	return int(n), err
}

// CountAssignmentsForTitle counts a user's assignments to screenings of filmID within w
func (s *Store) CountAssignmentsForTitle(ctx context.Context, userID, filmID string, w models.Window) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&database.Assignment{}).
		Joins("JOIN screenings ON screenings.id = assignments.screening_id").
		Where("assignments.user_id = ? AND screenings.film_id = ?", userID, filmID).
		Where("screenings.starts_at >= ? AND screenings.starts_at < ?", w.Start.UTC(), w.End.UTC()).
		Count(&n).Error
	return int(n), err
}

// LastAssignedAt returns the newest assignment creation time per user.
// Users who were never assigned are absent from the map.
func (s *Store) LastAssignedAt(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID    string
		CreatedAt time.Time
	}
	err := s.db.WithContext(ctx).
		Model(&database.Assignment{}).
		Select("user_id, created_at").
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if _, ok := out[r.UserID]; !ok {
			out[r.UserID] = r.CreatedAt
		}
	}
	return out, nil
}

// SkillTags returns the skill tags per user
func (s *Store) SkillTags(ctx context.Context, userIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []database.SkillTag
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("user_id ASC").
		Order("tag ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r.Tag)
	}
	return out, nil
}

// GetConstraint returns the raw value stored under key
func (s *Store) GetConstraint(ctx context.Context, key string) (string, bool, error) {
	var rows []database.Constraint
	err := s.db.WithContext(ctx).
		Where(&database.Constraint{Key: key}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// SetConstraint upserts a policy value
func (s *Store) SetConstraint(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&database.Constraint{Key: key, Value: value}).Error
}

// BulkInsertAssignments inserts rows, skipping any (screening, user, role)
// tuple that already exists. It returns the number of rows written.
func (s *Store) BulkInsertAssignments(ctx context.Context, rows []models.Assignment) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	records := make([]database.Assignment, len(rows))
	for i, a := range rows {
		records[i] = database.Assignment{
			ScreeningID: a.ScreeningID,
			UserID:      a.UserID,
			Role:        string(a.Role),
			Source:      string(a.Source),
			CreatedAt:   a.CreatedAt.UTC(),
		}
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "screening_id"}, {Name: "user_id"}, {Name: "role"}},
			DoNothing: true,
		}).
		CreateInBatches(&records, insertBatchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// AppendAuditLog writes one audit entry
func (s *Store) AppendAuditLog(ctx context.Context, entry models.AuditEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode audit data: %w", err)
	}
	return s.db.WithContext(ctx).Create(&database.AuditLog{
		ActorID:  entry.ActorID,
		Action:   entry.Action,
		Entity:   entry.Entity,
		EntityID: entry.EntityID,
		Data:     string(data),
	}).Error
}

func toAssignment(r database.Assignment) models.Assignment {
	return models.Assignment{
		ScreeningID: r.ScreeningID,
		UserID:      r.UserID,
		Role:        models.Role(r.Role),
		Source:      models.AssignmentSource(r.Source),
		CreatedAt:   r.CreatedAt,
	}
}

func toVolunteer(u database.User) models.Volunteer {
	roles := make([]models.Role, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = models.Role(r.Role)
	}
	return models.Volunteer{
		ID:     u.ID,
		Name:   u.Name,
		Roles:  roles,
		Active: u.Active,
	}
}
