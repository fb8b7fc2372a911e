package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

type ClockInRequest struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	IsRemoteWork   bool     `json:"is_remote_work"`
	LateReason     *string  `json:"late_reason,omitempty"`
}

func (r *ClockInRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Latitude < -90 || r.Latitude > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude < -180 || r.Longitude > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.AccuracyMeters != nil && *r.AccuracyMeters < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "accuracy_meters",
			Message: "accuracy_meters must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ClockOutRequest struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	AccuracyMeters   *float64 `json:"accuracy_meters,omitempty"`
	EarlyLeaveReason *string  `json:"early_leave_reason,omitempty"`
}

func (r *ClockOutRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Latitude < -90 || r.Latitude > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude < -180 || r.Longitude > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.AccuracyMeters != nil && *r.AccuracyMeters < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "accuracy_meters",
			Message: "accuracy_meters must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type StartBreakRequest struct {
	Type string `json:"type"`
}

func (r *StartBreakRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Type) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type is required",
		})
	} else if !validator.IsInSlice(r.Type, BreakTypeValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: lunch, rest, prayer",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ManualEntryRequest is an HR-created, possibly backdated record. Times are
// RFC3339 so the caller's timezone offset travels with them.
type ManualEntryRequest struct {
	EmployeeID        string  `json:"employee_id"`
	Date              string  `json:"date"` // "YYYY-MM-DD"
	ClockInTime       string  `json:"clock_in_time"`
	ClockOutTime      *string `json:"clock_out_time,omitempty"`
	Reason            string  `json:"reason"`
	IsRemoteWork      bool    `json:"is_remote_work"`
	SuppressPenalties *bool   `json:"suppress_penalties,omitempty"` // defaults to true
}

func (r *ManualEntryRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	if _, ok := validator.IsValidDate(r.Date); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	if _, ok := validator.IsValidDateTime(r.ClockInTime); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_in_time",
			Message: "clock_in_time must be an RFC3339 timestamp",
		})
	}

	if r.ClockOutTime != nil {
		if _, ok := validator.IsValidDateTime(*r.ClockOutTime); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "clock_out_time",
				Message: "clock_out_time must be an RFC3339 timestamp",
			})
		}
	}

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// CorrectAttendanceRequest is an HR fix-up of clock times on an existing
// record. Derived facts and penalties are recomputed, never edited directly.
type CorrectAttendanceRequest struct {
	ID           string  `json:"-"`
	ClockInTime  *string `json:"clock_in_time,omitempty"`
	ClockOutTime *string `json:"clock_out_time,omitempty"`
	Reason       string  `json:"reason"`
}

func (r *CorrectAttendanceRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.ClockInTime == nil && r.ClockOutTime == nil {
		errs = append(errs, validator.ValidationError{
			Field:   "clock_in_time",
			Message: "at least one of clock_in_time or clock_out_time is required",
		})
	}

	if r.ClockInTime != nil {
		if _, ok := validator.IsValidDateTime(*r.ClockInTime); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "clock_in_time",
				Message: "clock_in_time must be an RFC3339 timestamp",
			})
		}
	}

	if r.ClockOutTime != nil {
		if _, ok := validator.IsValidDateTime(*r.ClockOutTime); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "clock_out_time",
				Message: "clock_out_time must be an RFC3339 timestamp",
			})
		}
	}

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// DailySweepRequest closes out a past work day: records still clocked-in
// get flagged as missed clock-outs and scheduled employees with no record
// at all get marked absent. Scheduling is owned by the caller; this is the
// operation a cron or an HR user invokes.
type DailySweepRequest struct {
	Date string `json:"date"` // "YYYY-MM-DD", the work day to sweep
}

func (r *DailySweepRequest) Validate() error {
	var errs validator.ValidationErrors

	if _, ok := validator.IsValidDate(r.Date); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type DailySweepResponse struct {
	Date                string   `json:"date"`
	MissedClockOutIDs   []string `json:"missed_clock_out_ids"`
	AbsentAttendanceIDs []string `json:"absent_attendance_ids"`
}

type ApproveAttendanceRequest struct {
	ID    string  `json:"-"`
	Notes *string `json:"notes,omitempty"`
}

type RejectAttendanceRequest struct {
	ID     string `json:"-"`
	Reason string `json:"reason"`
}

func (r *RejectAttendanceRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// FILTERS
// ========================================

type AttendanceFilter struct {
	Page             int
	Limit            int
	EmployeeID       *string
	Status           *string
	ApprovalStatus   *string
	RequiresApproval *bool
	DateFrom         *time.Time
	DateTo           *time.Time
}

type MyAttendanceFilter struct {
	Page     int
	Limit    int
	DateFrom *time.Time
	DateTo   *time.Time
}

// ========================================
// RESPONSES
// ========================================

type BreakResponse struct {
	ID                       string  `json:"id"`
	Type                     string  `json:"type"`
	StartTime                string  `json:"start_time"`
	EndTime                  *string `json:"end_time,omitempty"`
	DurationMinutes          *int    `json:"duration_minutes,omitempty"`
	ScheduledDurationMinutes int     `json:"scheduled_duration_minutes"`
	IsPaid                   bool    `json:"is_paid"`
}

type PenaltyResponse struct {
	PolicyID    string          `json:"policy_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type AttendanceResponse struct {
	ID                string             `json:"id"`
	EmployeeID        string             `json:"employee_id"`
	EmployeeName      string             `json:"employee_name,omitempty"`
	EmployeePosition  *string            `json:"employee_position,omitempty"`
	Date              string             `json:"date"`
	Status            string             `json:"status"`
	ClockInTime       *string            `json:"clock_in_time,omitempty"`
	ClockOutTime      *string            `json:"clock_out_time,omitempty"`
	ScheduledClockIn  string             `json:"scheduled_clock_in"`
	ScheduledClockOut string             `json:"scheduled_clock_out"`
	IsLate            bool               `json:"is_late"`
	LateMinutes       int                `json:"late_minutes"`
	LateReason        *string            `json:"late_reason,omitempty"`
	IsEarlyLeave      bool               `json:"is_early_leave"`
	EarlyLeaveMinutes int                `json:"early_leave_minutes"`
	EarlyLeaveReason  *string            `json:"early_leave_reason,omitempty"`
	Breaks            []BreakResponse    `json:"breaks,omitempty"`
	TotalBreakMinutes int                `json:"total_break_minutes"`
	UnpaidBreakMins   int                `json:"unpaid_break_minutes"`
	ClockInLocation   *ClockLocation     `json:"clock_in_location,omitempty"`
	ClockOutLocation  *ClockLocation     `json:"clock_out_location,omitempty"`
	Penalties         []PenaltyResponse  `json:"penalties,omitempty"`
	PenaltyTotal      *decimal.Decimal   `json:"penalty_total,omitempty"`
	RequiresApproval  bool               `json:"requires_approval"`
	ApprovalStatus    *string            `json:"approval_status,omitempty"`
	ApprovedBy        *string            `json:"approved_by,omitempty"`
	ApprovalDate      *string            `json:"approval_date,omitempty"`
	ApprovalNotes     *string            `json:"approval_notes,omitempty"`
	WorkDurationHours *float64           `json:"work_duration_hours,omitempty"`
	IsRemoteWork      bool               `json:"is_remote_work"`
	IsManualEntry     bool               `json:"is_manual_entry"`
	IsMissedClockOut  bool               `json:"is_missed_clock_out"`
	IsCorrected       bool               `json:"is_corrected"`
	HasUnclosedBreak  bool               `json:"has_unclosed_break"`
	CreatedAt         string             `json:"created_at,omitempty"`
	UpdatedAt         string             `json:"updated_at,omitempty"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	Attendances []AttendanceResponse `json:"attendances"`
}
