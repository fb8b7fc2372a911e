package policy

import (
	"context"
	"time"
)

// WorkScheduleRepository resolves the schedule assigned to an employee.
type WorkScheduleRepository interface {
	// GetEmployeeSchedule returns the schedule active for the employee as of
	// the event time, or ErrNoScheduleFound when none is assigned.
	GetEmployeeSchedule(ctx context.Context, employeeID string, asOf time.Time, companyID string) (*WorkSchedulePolicy, error)
}

// GeofenceRepository resolves the fence a clock event must fall inside.
type GeofenceRepository interface {
	// GetActiveGeofence returns the most specific fence matching the employee
	// attributes, or nil when the company has no applicable fence.
	GetActiveGeofence(ctx context.Context, companyID string, departmentID, employmentType *string) (*GeofenceConfig, error)
}

// PenaltyPolicyRepository lists the company's configured penalty rules.
type PenaltyPolicyRepository interface {
	// GetPenaltyPolicies returns rules active as of the event time, ordered
	// by priority.
	GetPenaltyPolicies(ctx context.Context, companyID string, asOf time.Time) ([]PenaltyPolicy, error)
}
