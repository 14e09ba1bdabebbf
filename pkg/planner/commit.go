package planner

import (
	"context"
	"fmt"

	"github.com/arnavshah/screening-planner/pkg/models"
)

const (
	AuditActionPlannerRun = "PLANNER_RUN"
	auditEntityAssignment = "Assignment"
	auditEntityIDBulk     = "bulk"
)

// commit persists planned assignments with source=auto and appends one audit
// entry. Both writes share a transaction when the store is a Transactor.
func (p *Planner) commit(ctx context.Context, planned []PlannedAssignment, actorID string) (int, error) {
	if len(planned) == 0 {
		return 0, nil
	}

	now := p.opts.Now()
	rows := make([]models.Assignment, len(planned))
	for i, a := range planned {
		rows[i] = models.Assignment{
			ScreeningID: a.ScreeningID,
			UserID:      a.UserID,
			Role:        a.Role,
			Source:      models.SourceAuto,
			CreatedAt:   now,
		}
	}

	var inserted int
	write := func(ds DataStore) error {
		n, err := ds.BulkInsertAssignments(ctx, rows)
		if err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		inserted = n
		entry := models.AuditEntry{
			ActorID:  actorID,
			Action:   AuditActionPlannerRun,
			Entity:   auditEntityAssignment,
			EntityID: auditEntityIDBulk,
			Data: map[string]any{
				"assignments":  len(rows),
				"inserted":     n,
				"screeningIds": screeningIDs(planned),
			},
		}
		if err := ds.AppendAuditLog(ctx, entry); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}
		return nil
	}

	if tx, ok := p.store.(Transactor); ok {
		if err := tx.WithinTx(ctx, write); err != nil {
			return 0, err
		}
		return inserted, nil
	}
	if err := write(p.store); err != nil {
		return 0, err
	}
	return inserted, nil
}

// screeningIDs returns the distinct screening ids in first-seen order
func screeningIDs(planned []PlannedAssignment) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range planned {
		if !seen[a.ScreeningID] {
			seen[a.ScreeningID] = true
			ids = append(ids, a.ScreeningID)
		}
	}
	return ids
}
