package policy

import "errors"

// Policy lookup errors. Lookup failures fail the clock event closed; the
// only sanctioned fallback is the configured default schedule window for a
// weekday the schedule does not cover.
var (
	ErrNoScheduleFound = errors.New("no work schedule assigned to employee")
	ErrPolicyLookup    = errors.New("failed to resolve policy configuration")
)
