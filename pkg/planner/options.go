package planner

import (
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// DefaultNeeded is the headcount every screening role is planned to
const DefaultNeeded = 2

// AvailabilityPolicy decides who counts as available when a volunteer
// has not answered for a screening.
type AvailabilityPolicy int

const (
	// ImplicitAvailable treats every active volunteer holding the role as
	// available unless they explicitly opted out. Explicit opt-ins rank first.
	ImplicitAvailable AvailabilityPolicy = iota
	// ExplicitOnly only considers volunteers who explicitly opted in.
	ExplicitOnly
)

func (p AvailabilityPolicy) String() string {
	switch p {
	case ExplicitOnly:
		return "explicit-only"
	default:
		return "implicit-available"
	}
}

// Options tunes a Planner. Zero values are replaced by defaults in New.
type Options struct {
	// Needed is the target headcount per screening role
	Needed int
	// Roles are planned in this order for every screening
	Roles []models.Role
	// AvailabilityPolicy controls the candidate pool fallback
	AvailabilityPolicy AvailabilityPolicy
	// AllowDoubleBooking permits one volunteer to fill two different roles
	// on the same screening. Off by default.
	AllowDoubleBooking bool
	// PerCandidateCounts switches weekly and monthly limit checks from one
	// preloaded history query to per-volunteer count queries (memoized per run).
	PerCandidateCounts bool
	// Location anchors ISO week and calendar month boundaries
	Location *time.Location
	// Now stamps committed assignments
	Now func() time.Time
}

// DefaultOptions returns the planner defaults
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Needed <= 0 {
		o.Needed = DefaultNeeded
	}
	if len(o.Roles) == 0 {
		o.Roles = append([]models.Role(nil), models.StaffedRoles...)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
