package planner

import (
	"context"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// DataStore is everything the planner reads from and writes to.
// Range arguments to ListScreenings are inclusive on both ends; Window
// arguments are half-open.
type DataStore interface {
	ListScreenings(ctx context.Context, start, end time.Time) ([]models.Screening, error)
	ListScreeningAssignments(ctx context.Context, screeningID string) ([]models.Assignment, error)
	ListAvailability(ctx context.Context, screeningID string, role models.Role, status models.AvailabilityStatus) ([]string, error)
	ListActiveVolunteersWithRole(ctx context.Context, role models.Role, excludeUserIDs []string) ([]models.Volunteer, error)
	ListAssignmentsInWindow(ctx context.Context, w models.Window) ([]models.AssignmentRecord, error)
	CountAssignments(ctx context.Context, userID string, w models.Window) (int, error)
	CountAssignmentsForTitle(ctx context.Context, userID, filmID string, w models.Window) (int, error)
	LastAssignedAt(ctx context.Context, userIDs []string) (map[string]time.Time, error)
	SkillTags(ctx context.Context, userIDs []string) (map[string][]string, error)
	GetConstraint(ctx context.Context, key string) (string, bool, error)
	BulkInsertAssignments(ctx context.Context, rows []models.Assignment) (int, error)
	AppendAuditLog(ctx context.Context, entry models.AuditEntry) error
}

// ConstraintReader is the subset of DataStore needed to read policy values
type ConstraintReader interface {
	GetConstraint(ctx context.Context, key string) (string, bool, error)
}

// Transactor is implemented by stores that can run several writes atomically.
// The committer uses it to couple the assignment insert with its audit entry.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx DataStore) error) error
}
