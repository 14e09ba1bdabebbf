package planner

import "github.com/arnavshah/screening-planner/pkg/models"

// deficitReport accumulates under-filled screening roles in planning order
type deficitReport struct {
	items []models.Deficit
}

func (r *deficitReport) record(screeningID string, role models.Role, needed, available int) {
	r.items = append(r.items, models.Deficit{
		ScreeningID: screeningID,
		Role:        role,
		Needed:      needed,
		Available:   available,
	})
}

func (r *deficitReport) list() []models.Deficit {
	if r.items == nil {
		return []models.Deficit{}
	}
	return r.items
}
