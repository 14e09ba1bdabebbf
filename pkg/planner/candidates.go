package planner

import (
	"context"
	"fmt"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// Candidate is a volunteer under consideration for one screening role
type Candidate struct {
	UserID    string   `json:"userId"`
	Name      string   `json:"name"`
	SkillTags []string `json:"skillTags,omitempty"`
	// Explicit is set when the volunteer opted in for this screening role
	Explicit bool `json:"explicit"`
}

// ResolveCandidates builds the candidate pool for a screening role.
//
// Only active volunteers holding the role are returned. Explicit opt-ins come
// first in the order the store lists them, followed (under ImplicitAvailable)
// by every remaining volunteer who did not opt out. No user appears twice.
func ResolveCandidates(ctx context.Context, ds DataStore, screeningID string, role models.Role, policy AvailabilityPolicy) ([]Candidate, error) {
	explicit, err := ds.ListAvailability(ctx, screeningID, role, models.Available)
	if err != nil {
		return nil, fmt.Errorf("list available for %s/%s: %w", screeningID, role, err)
	}
	unavailable, err := ds.ListAvailability(ctx, screeningID, role, models.Unavailable)
	if err != nil {
		return nil, fmt.Errorf("list unavailable for %s/%s: %w", screeningID, role, err)
	}
	pool, err := ds.ListActiveVolunteersWithRole(ctx, role, unavailable)
	if err != nil {
		return nil, fmt.Errorf("list volunteers with role %s: %w", role, err)
	}

	byID := make(map[string]models.Volunteer, len(pool))
	for _, v := range pool {
		if !v.Active || !v.HasRole(role) {
			continue
		}
		byID[v.ID] = v
	}

	seen := make(map[string]bool, len(byID))
	candidates := make([]Candidate, 0, len(byID))
	for _, id := range explicit {
		v, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, Candidate{UserID: id, Name: v.Name, Explicit: true})
	}
	if policy == ImplicitAvailable {
		for _, v := range pool {
			if _, ok := byID[v.ID]; !ok || seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			candidates = append(candidates, Candidate{UserID: v.ID, Name: v.Name})
		}
	}

	if len(candidates) == 0 {
		return candidates, nil
	}
	tags, err := ds.SkillTags(ctx, candidateIDs(candidates))
	if err != nil {
		return nil, fmt.Errorf("load skill tags: %w", err)
	}
	for i := range candidates {
		candidates[i].SkillTags = tags[candidates[i].UserID]
	}
	return candidates, nil
}

func candidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UserID
	}
	return ids
}
