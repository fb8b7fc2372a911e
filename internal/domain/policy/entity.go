package policy

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/geo"
)

type PenaltyType string

const (
	PenaltyLate           PenaltyType = "late"
	PenaltyEarlyLeave     PenaltyType = "early-leave"
	PenaltyAbsence        PenaltyType = "absence"
	PenaltyMissedClockOut PenaltyType = "missed-clock-out"
)

// GeofenceConfig is a circular boundary clock events are validated against.
// Applicability filters are nil when the fence applies to everyone.
type GeofenceConfig struct {
	ID                string
	CompanyID         string
	Name              string
	Latitude          float64
	Longitude         float64
	RadiusMeters      float64
	EnforceOnClockIn  bool
	EnforceOnClockOut bool
	DepartmentID      *string
	EmploymentType    *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Fence returns the geometric fence for containment checks.
func (g GeofenceConfig) Fence() geo.Fence {
	return geo.Fence{
		Center:       geo.Point{Latitude: g.Latitude, Longitude: g.Longitude},
		RadiusMeters: g.RadiusMeters,
	}
}

// ScheduleDay is the expected window for one weekday.
type ScheduleDay struct {
	ClockIn              string // "HH:MM"
	ClockOut             string // "HH:MM"
	BreakDurationMinutes int
	BreakIsPaid          bool
}

// WorkSchedulePolicy is an employee's assigned weekly schedule. Weekdays
// with no entry fall back to the tenant default window.
type WorkSchedulePolicy struct {
	ID        string
	CompanyID string
	Name      string
	Days      map[time.Weekday]ScheduleDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PenaltyTier is one step of a progressive penalty scale. The tier with the
// highest FromOccurrence not exceeding the occurrence count applies.
type PenaltyTier struct {
	FromOccurrence int             `json:"from_occurrence"`
	Amount         decimal.Decimal `json:"amount"`
}

// PenaltyPolicy maps a violation type to a monetary charge. Scope filters
// (department, employment type) are nil when the rule applies to everyone;
// lower Priority wins when several rules match.
type PenaltyPolicy struct {
	ID             string
	CompanyID      string
	Name           string
	Type           PenaltyType
	DepartmentID   *string
	EmploymentType *string
	Priority       int
	Amount         decimal.Decimal
	Progressive    bool
	Tiers          []PenaltyTier
	ActiveFrom     time.Time
	ActiveUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppliesTo reports whether the policy's scope covers the given employee
// attributes.
func (p PenaltyPolicy) AppliesTo(departmentID, employmentType *string) bool {
	if p.DepartmentID != nil && (departmentID == nil || *p.DepartmentID != *departmentID) {
		return false
	}
	if p.EmploymentType != nil && (employmentType == nil || *p.EmploymentType != *employmentType) {
		return false
	}
	return true
}

// ActiveAt reports whether the policy was in force at the given time.
func (p PenaltyPolicy) ActiveAt(t time.Time) bool {
	if t.Before(p.ActiveFrom) {
		return false
	}
	if p.ActiveUntil != nil && t.After(*p.ActiveUntil) {
		return false
	}
	return true
}
