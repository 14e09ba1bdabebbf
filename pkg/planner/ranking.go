package planner

import (
	"sort"
	"strings"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// rankInput carries the per-run counters the ranker reads
type rankInput struct {
	role      models.Role
	persisted map[userRoleKey]int
	ledger    *ledger
	last      map[string]time.Time
}

type scored struct {
	Candidate
	load    int
	last    time.Time
	hasLast bool
	skill   int
}

// rankCandidates orders candidates by ascending load, then oldest (or no)
// last assignment, then descending skill score. The sort is stable so
// remaining ties keep resolver order.
func rankCandidates(candidates []Candidate, in rankInput) []Candidate {
	rows := make([]scored, len(candidates))
	for i, c := range candidates {
		key := userRoleKey{c.UserID, in.role}
		last, ok := in.last[c.UserID]
		rows[i] = scored{
			Candidate: c,
			load:      in.persisted[key] + in.ledger.roleCount(c.UserID, in.role),
			last:      last.Truncate(time.Second),
			hasLast:   ok && !last.IsZero(),
			skill:     SkillScore(c.SkillTags, in.role),
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.load != b.load {
			return a.load < b.load
		}
		if a.hasLast != b.hasLast {
			return !a.hasLast
		}
		if a.hasLast && !a.last.Equal(b.last) {
			return a.last.Before(b.last)
		}
		return a.skill > b.skill
	})

	out := make([]Candidate, len(rows))
	for i, r := range rows {
		out[i] = r.Candidate
	}
	return out
}

// SkillScore counts tags mentioning the role name, "expert" or "lead"
func SkillScore(tags []string, role models.Role) int {
	roleName := strings.ToLower(string(role))
	score := 0
	for _, tag := range tags {
		t := strings.ToLower(tag)
		if strings.Contains(t, roleName) || strings.Contains(t, "expert") || strings.Contains(t, "lead") {
			score++
		}
	}
	return score
}
