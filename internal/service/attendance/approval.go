package attendance

import (
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
)

// ApprovalInput is everything the decision table looks at. Evaluated at
// clock-in and manual-entry creation; clock-out, the daily sweep and the
// correction flow re-apply it, never downgrading an existing sub-state.
type ApprovalInput struct {
	GeofenceEnforced bool
	Location         *attendance.ClockLocation
	IsRemoteWork     bool
	PenaltyCount     int
	// Largest lateness/earliness delta behind the penalties, zero for
	// non-time violations (absence, missed clock-out).
	ViolationMinutes int
	// Minutes of lateness/earliness tolerated before a penalty forces the
	// record into the approval queue. Zero means any penalty does.
	AutoApproveThresholdMinutes int
	IsManualEntry               bool
	CreatedBy                   string // manual entries are pre-approved by their creator
	Now                         time.Time
}

// ApprovalDecision is the resulting approval sub-state for a new record.
type ApprovalDecision struct {
	RequiresApproval bool
	Status           *attendance.ApprovalStatus
	ApprovedBy       *string
	ApprovalDate     *time.Time
}

// DecideApproval walks the decision table, first match wins:
//  1. enforced fence + location present + outside fence + not remote work
//  2. any penalty applied
//  3. manual HR entry: pre-approved
//  4. otherwise: no approval needed
func DecideApproval(in ApprovalInput) ApprovalDecision {
	if in.GeofenceEnforced && in.Location != nil && !in.IsRemoteWork {
		if in.Location.IsWithinGeofence != nil && !*in.Location.IsWithinGeofence {
			return pendingDecision()
		}
	}

	if in.PenaltyCount > 0 {
		// Non-time penalties always queue; time-based ones only past the
		// configured tolerance.
		if in.ViolationMinutes == 0 || in.ViolationMinutes > in.AutoApproveThresholdMinutes {
			return pendingDecision()
		}
	}

	if in.IsManualEntry {
		status := attendance.ApprovalApproved
		approvedBy := in.CreatedBy
		approvalDate := in.Now
		return ApprovalDecision{
			RequiresApproval: false,
			Status:           &status,
			ApprovedBy:       &approvedBy,
			ApprovalDate:     &approvalDate,
		}
	}

	return ApprovalDecision{}
}

func pendingDecision() ApprovalDecision {
	status := attendance.ApprovalPending
	return ApprovalDecision{
		RequiresApproval: true,
		Status:           &status,
	}
}
