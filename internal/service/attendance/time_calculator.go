package attendance

import (
	"fmt"
	"math"
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
)

// ScheduleWindow is a resolved "HH:MM" start/end pair for one work day.
type ScheduleWindow struct {
	ClockIn              string
	ClockOut             string
	BreakDurationMinutes int
	BreakIsPaid          bool
}

// Lateness holds the result of comparing a clock event against its
// scheduled boundary. Minutes are clamped at zero: arriving early is never
// late, leaving late is never early.
type Lateness struct {
	IsLate  bool
	Minutes int
}

// BreakTotals aggregates closed breaks. OpenBreaks counts breaks with no
// end time; they contribute zero minutes and are surfaced as a data-quality
// flag instead of being silently dropped.
type BreakTotals struct {
	TotalMinutes  int
	UnpaidMinutes int
	OpenBreaks    int
}

// TimeCalculator resolves schedule windows and computes clock deltas. The
// default window comes from configuration, not a literal, so it is
// tenant-overridable and testable.
type TimeCalculator struct {
	defaultWindow ScheduleWindow
}

func NewTimeCalculator(defaultClockIn, defaultClockOut string) *TimeCalculator {
	return &TimeCalculator{
		defaultWindow: ScheduleWindow{
			ClockIn:  defaultClockIn,
			ClockOut: defaultClockOut,
		},
	}
}

// ResolveScheduledWindow returns the expected window for the weekday, falling
// back to the configured default when the schedule has no entry for it.
func (c *TimeCalculator) ResolveScheduledWindow(schedule *policy.WorkSchedulePolicy, weekday time.Weekday) ScheduleWindow {
	if schedule != nil {
		if day, ok := schedule.Days[weekday]; ok {
			return ScheduleWindow{
				ClockIn:              day.ClockIn,
				ClockOut:             day.ClockOut,
				BreakDurationMinutes: day.BreakDurationMinutes,
				BreakIsPaid:          day.BreakIsPaid,
			}
		}
	}
	return c.defaultWindow
}

// ComputeLateness compares a clock-in against the scheduled start on the
// same calendar day, in the clock-in's location.
func (c *TimeCalculator) ComputeLateness(clockIn time.Time, scheduledStart string) (Lateness, error) {
	reference, err := combineDateAndClock(clockIn, scheduledStart)
	if err != nil {
		return Lateness{}, err
	}

	minutes := int(math.Floor(clockIn.Sub(reference).Minutes()))
	if minutes < 0 {
		minutes = 0
	}

	return Lateness{IsLate: minutes > 0, Minutes: minutes}, nil
}

// ComputeEarlyLeave is the symmetric operation against the scheduled end.
func (c *TimeCalculator) ComputeEarlyLeave(clockOut time.Time, scheduledEnd string) (Lateness, error) {
	reference, err := combineDateAndClock(clockOut, scheduledEnd)
	if err != nil {
		return Lateness{}, err
	}

	minutes := int(math.Floor(reference.Sub(clockOut).Minutes()))
	if minutes < 0 {
		minutes = 0
	}

	return Lateness{IsLate: minutes > 0, Minutes: minutes}, nil
}

// AggregateBreaks sums closed breaks. Open breaks contribute zero and are
// reported through OpenBreaks.
func (c *TimeCalculator) AggregateBreaks(breaks []attendance.BreakRecord) BreakTotals {
	var totals BreakTotals
	for _, b := range breaks {
		if !b.Closed() || b.DurationMinutes == nil {
			totals.OpenBreaks++
			continue
		}
		totals.TotalMinutes += *b.DurationMinutes
		if !b.IsPaid {
			totals.UnpaidMinutes += *b.DurationMinutes
		}
	}
	return totals
}

// ComputeDurationHours returns worked hours net of unpaid breaks, rounded to
// two decimals and floored at zero.
func (c *TimeCalculator) ComputeDurationHours(clockIn, clockOut time.Time, unpaidBreakMinutes int) float64 {
	minutes := clockOut.Sub(clockIn).Minutes() - float64(unpaidBreakMinutes)
	if minutes < 0 {
		minutes = 0
	}
	return math.Round(minutes/60*100) / 100
}

// combineDateAndClock builds a reference time from the event's calendar date
// and an "HH:MM" boundary, in the event's location.
func combineDateAndClock(event time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule time %q: %w", clock, err)
	}
	return time.Date(
		event.Year(), event.Month(), event.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0,
		event.Location(),
	), nil
}
