package attendance

import "errors"

// Attendance domain errors
var (
	// Clock event errors
	ErrDuplicateClockIn  = errors.New("you have already clocked in today")
	ErrNoActiveClockIn   = errors.New("you have not clocked in yet")
	ErrAlreadyClockedOut = errors.New("you have already clocked out")
	ErrInvalidTimeWindow = errors.New("clock-out time must be after clock-in time")

	// Break errors
	ErrOpenBreakExists    = errors.New("a break is already in progress")
	ErrNoOpenBreak        = errors.New("no break is in progress")
	ErrBreakAlreadyClosed = errors.New("break has already ended")

	// Approval errors
	ErrApprovalNotPending   = errors.New("attendance record is not awaiting approval")
	ErrAlreadyApproved      = errors.New("attendance record has already been approved")
	ErrAlreadyRejected      = errors.New("attendance record has already been rejected")
	ErrUnauthorizedApproval = errors.New("not authorized to approve this attendance record")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
)
