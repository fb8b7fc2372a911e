package response

import (
	"errors"
	"net/http"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/employee"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/user"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Attendance domain errors
	switch {
	case errors.Is(err, attendance.ErrDuplicateClockIn):
		Conflict(w, "Already clocked in today")
	case errors.Is(err, attendance.ErrNoActiveClockIn):
		BadRequest(w, "No active clock-in for today", nil)
	case errors.Is(err, attendance.ErrAlreadyClockedOut):
		Conflict(w, "Already clocked out today")
	case errors.Is(err, attendance.ErrInvalidTimeWindow):
		BadRequest(w, "Clock-out time must be after clock-in time", nil)
	case errors.Is(err, attendance.ErrOpenBreakExists):
		Conflict(w, "A break is already in progress")
	case errors.Is(err, attendance.ErrNoOpenBreak):
		BadRequest(w, "No break is in progress", nil)
	case errors.Is(err, attendance.ErrBreakAlreadyClosed):
		Conflict(w, "Break has already ended")
	case errors.Is(err, attendance.ErrApprovalNotPending):
		Conflict(w, "Attendance record is not awaiting approval")
	case errors.Is(err, attendance.ErrAlreadyApproved):
		Conflict(w, "Attendance record has already been approved")
	case errors.Is(err, attendance.ErrAlreadyRejected):
		Conflict(w, "Attendance record has already been rejected")
	case errors.Is(err, attendance.ErrUnauthorizedApproval):
		Forbidden(w, "Not authorized to approve this attendance record")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// Policy domain errors
	case errors.Is(err, policy.ErrNoScheduleFound):
		BadRequest(w, "No work schedule assigned to employee", nil)
	case errors.Is(err, policy.ErrPolicyLookup):
		InternalServerError(w, "Failed to resolve policy configuration")

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// User domain errors
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")
	case errors.Is(err, user.ErrManagerAccessRequired):
		Forbidden(w, "Manager access required")
	case errors.Is(err, user.ErrHRAccessRequired):
		Forbidden(w, "HR access required")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
