package models

import "time"

// Role is a staffing capability a volunteer may hold
type Role string

const (
	RoleTechniek  Role = "TECHNIEK"
	RoleZaalwacht Role = "ZAALWACHT"
	RoleProgramma Role = "PROGRAMMA"
	RoleAdmin     Role = "ADMIN"
)

// StaffedRoles lists the roles every screening needs, in planning order.
var StaffedRoles = []Role{RoleTechniek, RoleZaalwacht}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleTechniek, RoleZaalwacht, RoleProgramma, RoleAdmin:
		return true
	}
	return false
}

// AvailabilityStatus is a volunteer's explicit answer for a screening and role
type AvailabilityStatus string

const (
	Available   AvailabilityStatus = "available"
	Unavailable AvailabilityStatus = "unavailable"
)

// AssignmentSource records which path created an assignment
type AssignmentSource string

const (
	SourceAuto   AssignmentSource = "auto"
	SourceManual AssignmentSource = "manual"
)

// Screening is a scheduled showing of a title that needs staffing
type Screening struct {
	ID       string    `json:"id"`
	FilmID   string    `json:"filmId"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Location string    `json:"location"`
}

// Volunteer is a person who can be assigned to screenings
type Volunteer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Roles  []Role `json:"roles"`
	Active bool   `json:"active"`
}

// HasRole reports whether the volunteer holds role
func (v Volunteer) HasRole(role Role) bool {
	for _, r := range v.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Assignment represents a volunteer-screening-role pairing
type Assignment struct {
	ScreeningID string           `json:"screeningId"`
	UserID      string           `json:"userId"`
	Role        Role             `json:"role"`
	Source      AssignmentSource `json:"source,omitempty"`
	CreatedAt   time.Time        `json:"createdAt,omitempty"`
}

// AssignmentRecord is a persisted assignment joined with the screening
// fields needed for weekly and monthly limit counting.
type AssignmentRecord struct {
	ScreeningID string
	UserID      string
	Role        Role
	FilmID      string
	StartsAt    time.Time
	CreatedAt   time.Time
}

// Deficit reports a screening role left below the needed headcount
type Deficit struct {
	ScreeningID string `json:"screeningId"`
	Role        Role   `json:"role"`
	Needed      int    `json:"needed"`
	Available   int    `json:"available"`
}

// AuditEntry is appended to the audit log after a committed planner run
type AuditEntry struct {
	ActorID  string         `json:"actorId,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Data     map[string]any `json:"data,omitempty"`
}

// Window is a half-open time interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
