package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
)

type Status string

const (
	StatusClockedIn  Status = "clocked-in"
	StatusClockedOut Status = "clocked-out"
	// StatusAbsent marks a scheduled day with no clock events at all. Only
	// the daily sweep creates these; there is no transition out of it short
	// of an HR correction.
	StatusAbsent Status = "absent"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type BreakType string

const (
	BreakLunch  BreakType = "lunch"
	BreakRest   BreakType = "rest"
	BreakPrayer BreakType = "prayer"
)

var BreakTypeValues = []string{
	string(BreakLunch),
	string(BreakRest),
	string(BreakPrayer),
}

// ClockLocation is the location evidence captured with a clock event.
// Accuracy is informational only and never enters the geofence decision.
type ClockLocation struct {
	Latitude                 float64  `json:"latitude"`
	Longitude                float64  `json:"longitude"`
	AccuracyMeters           *float64 `json:"accuracy_meters,omitempty"`
	IsWithinGeofence         *bool    `json:"is_within_geofence,omitempty"`
	DistanceFromOfficeMeters *float64 `json:"distance_from_office_meters,omitempty"`
}

// BreakRecord is one break within a work day. EndTime is immutable once set.
type BreakRecord struct {
	ID                       string     `json:"id"`
	Type                     BreakType  `json:"type"`
	StartTime                time.Time  `json:"start_time"`
	EndTime                  *time.Time `json:"end_time,omitempty"`
	DurationMinutes          *int       `json:"duration_minutes,omitempty"`
	ScheduledDurationMinutes int        `json:"scheduled_duration_minutes"`
	IsPaid                   bool       `json:"is_paid"`
}

// Closed reports whether the break has ended.
func (b BreakRecord) Closed() bool {
	return b.EndTime != nil
}

// Penalty is one monetary charge assessed against the day. Append-only:
// corrections reissue the whole list, they never mutate entries in place.
type Penalty struct {
	PolicyID    string             `json:"policy_id"`
	Type        policy.PenaltyType `json:"type"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
}

// Attendance is the denormalized record for one (employee, work day).
// Schedule fields are snapshotted at clock-in so later policy edits never
// rewrite history.
type Attendance struct {
	ID         string
	CompanyID  string
	EmployeeID string
	Date       time.Time // work day at tenant-local midnight, not a timestamp
	Status     Status

	ClockIn  *time.Time
	ClockOut *time.Time

	// Schedule snapshot, "HH:MM"
	ScheduledClockIn  string
	ScheduledClockOut string

	IsLate         bool
	LateMinutes    int
	LateReason     *string
	IsExcusedLate  bool
	LateApprovedBy *string

	IsEarlyLeave         bool
	EarlyLeaveMinutes    int
	EarlyLeaveReason     *string
	IsExcusedEarlyLeave  bool
	EarlyLeaveApprovedBy *string

	Breaks             []BreakRecord
	TotalBreakMinutes  int
	UnpaidBreakMinutes int

	ClockInLocation  *ClockLocation
	ClockOutLocation *ClockLocation

	Penalties []Penalty

	RequiresApproval bool
	ApprovalStatus   *ApprovalStatus
	ApprovedBy       *string
	ApprovalDate     *time.Time
	ApprovalNotes    *string

	// Computed once at clock-out and persisted, so reads never drift.
	WorkDurationHours *float64

	IsRemoteWork     bool
	IsManualEntry    bool
	IsMissedClockOut bool
	IsCorrected      bool
	// Set when clock-out found a break still open; the break is flagged,
	// never closed with a guessed duration.
	HasUnclosedBreak bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// DTO
	EmployeeName     *string
	EmployeePosition *string
	DepartmentID     *string
	EmploymentType   *string
}

// OpenBreak returns the currently open break, if any.
func (a *Attendance) OpenBreak() *BreakRecord {
	for i := range a.Breaks {
		if !a.Breaks[i].Closed() {
			return &a.Breaks[i]
		}
	}
	return nil
}

// ApprovalIsPending reports whether the record is waiting on an approver.
func (a *Attendance) ApprovalIsPending() bool {
	return a.ApprovalStatus != nil && *a.ApprovalStatus == ApprovalPending
}
