package attendance

import (
	"context"
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
)

// AttendanceRepository defines data access methods for attendance records.
// All methods include companyID parameter to prevent cross-company data access attacks.
type AttendanceRepository interface {
	// Create inserts a new record. The (company, employee, date) unique
	// constraint makes concurrent clock-ins safe: the loser of the race gets
	// ErrDuplicateClockIn instead of a second row.
	Create(ctx context.Context, attendance Attendance) (Attendance, error)

	// GetByID retrieves attendance by ID with company isolation
	GetByID(ctx context.Context, id string, companyID string) (Attendance, error)

	// GetByEmployeeAndDate retrieves attendance for a specific employee on a
	// specific work day. Returns nil when no record exists.
	GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time, companyID string) (*Attendance, error)

	// Update updates an existing attendance record
	Update(ctx context.Context, attendance Attendance) error

	// List retrieves attendance records with filters and pagination
	List(ctx context.Context, filter AttendanceFilter, companyID string) ([]Attendance, int64, error)

	// GetMyAttendance retrieves attendance records for a specific employee
	GetMyAttendance(ctx context.Context, employeeID string, filter MyAttendanceFilter, companyID string) ([]Attendance, int64, error)

	// ListOpenForDate returns the records still clocked-in on a work day.
	// Feeds the daily sweep that flags missed clock-outs.
	ListOpenForDate(ctx context.Context, date time.Time, companyID string) ([]Attendance, error)

	// CountPriorOccurrences counts the employee's finalized violations of the
	// given type inside [periodStart, periodEnd). Feeds progressive penalty
	// tier selection. excludeID removes one record from the count so a
	// correction never counts the record being corrected as its own prior
	// occurrence; empty string excludes nothing.
	CountPriorOccurrences(ctx context.Context, employeeID string, violation policy.PenaltyType, periodStart, periodEnd time.Time, excludeID string, companyID string) (int, error)
}

// ApproverAuthorizer answers whether an actor may approve or reject a
// record. Lives in the RBAC domain; the engine only consumes the verdict.
type ApproverAuthorizer interface {
	IsAuthorizedApprover(ctx context.Context, actorUserID string, record Attendance) (bool, error)
}
