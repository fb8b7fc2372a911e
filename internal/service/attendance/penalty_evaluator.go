package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
)

// OccurrenceCounter is the single read-aside the evaluator needs: how many
// times the employee committed this violation earlier in the period.
// Injected so the evaluator stays pure and unit-testable with a stub.
type OccurrenceCounter interface {
	CountPriorOccurrences(ctx context.Context, employeeID string, violation policy.PenaltyType, periodStart, periodEnd time.Time, excludeID string, companyID string) (int, error)
}

// ViolationFacts are the day's facts the evaluator maps to charges.
type ViolationFacts struct {
	EmployeeID       string
	CompanyID        string
	Date             time.Time
	MinutesLate      int
	MinutesEarly     int
	IsAbsent         bool
	IsMissedClockOut bool
	DepartmentID     *string
	EmploymentType   *string
	// ExcludeRecordID keeps an already-persisted record out of the prior
	// occurrence count when its penalties are being re-evaluated. Without it
	// a correction would count the record as its own prior occurrence and
	// charge one tier too high.
	ExcludeRecordID string
}

// PenaltyEvaluator assesses monetary penalties from violation facts and the
// company's configured rule table.
type PenaltyEvaluator struct {
	occurrences OccurrenceCounter
}

func NewPenaltyEvaluator(occurrences OccurrenceCounter) *PenaltyEvaluator {
	return &PenaltyEvaluator{occurrences: occurrences}
}

// Evaluate emits at most one penalty per applicable violation kind, in a
// stable order (late, early-leave, absence, missed clock-out). A violation
// with no matching policy emits nothing: a configuration gap, not an error.
func (e *PenaltyEvaluator) Evaluate(ctx context.Context, facts ViolationFacts, policies []policy.PenaltyPolicy) ([]attendance.Penalty, error) {
	var result []attendance.Penalty

	for _, violation := range e.applicableViolations(facts) {
		matched := e.selectPolicy(policies, violation, facts)
		if matched == nil {
			continue
		}

		amount, err := e.resolveAmount(ctx, matched, violation, facts)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			continue
		}

		result = append(result, attendance.Penalty{
			PolicyID:    matched.ID,
			Type:        violation,
			Amount:      amount,
			Description: matched.Name,
		})
	}

	return result, nil
}

func (e *PenaltyEvaluator) applicableViolations(facts ViolationFacts) []policy.PenaltyType {
	var violations []policy.PenaltyType
	if facts.MinutesLate > 0 {
		violations = append(violations, policy.PenaltyLate)
	}
	if facts.MinutesEarly > 0 {
		violations = append(violations, policy.PenaltyEarlyLeave)
	}
	if facts.IsAbsent {
		violations = append(violations, policy.PenaltyAbsence)
	}
	if facts.IsMissedClockOut {
		violations = append(violations, policy.PenaltyMissedClockOut)
	}
	return violations
}

// selectPolicy picks the single matching rule for a violation: type and
// scope must match, lowest priority wins.
func (e *PenaltyEvaluator) selectPolicy(policies []policy.PenaltyPolicy, violation policy.PenaltyType, facts ViolationFacts) *policy.PenaltyPolicy {
	var candidates []policy.PenaltyPolicy
	for _, p := range policies {
		if p.Type != violation {
			continue
		}
		if !p.ActiveAt(facts.Date) {
			continue
		}
		if !p.AppliesTo(facts.DepartmentID, facts.EmploymentType) {
			continue
		}
		candidates = append(candidates, p)
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	return &candidates[0]
}

func (e *PenaltyEvaluator) resolveAmount(ctx context.Context, p *policy.PenaltyPolicy, violation policy.PenaltyType, facts ViolationFacts) (decimal.Decimal, error) {
	if !p.Progressive {
		return p.Amount, nil
	}

	periodStart, periodEnd := occurrencePeriod(facts.Date)
	prior, err := e.occurrences.CountPriorOccurrences(ctx, facts.EmployeeID, violation, periodStart, periodEnd, facts.ExcludeRecordID, facts.CompanyID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to count prior occurrences: %w", err)
	}

	// This event is occurrence prior+1 within the period
	count := prior + 1

	// Highest tier threshold the count has reached wins; tier order in the
	// policy document does not matter.
	amount := decimal.Zero
	best := 0
	for _, tier := range p.Tiers {
		if tier.FromOccurrence <= count && tier.FromOccurrence >= best {
			best = tier.FromOccurrence
			amount = tier.Amount
		}
	}
	return amount, nil
}

// occurrencePeriod is the rolling window progressive rules count within:
// the calendar month of the event, in the event's location.
func occurrencePeriod(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 1, 0)
}
