package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
)

type penaltyPolicyRepositoryImpl struct {
	db *database.DB
}

// GetPenaltyPolicies implements policy.PenaltyPolicyRepository.
// Returns the company's penalty rules in force at the given time. Tiers for
// progressive rules are stored as a JSONB array on the row.
func (p *penaltyPolicyRepositoryImpl) GetPenaltyPolicies(ctx context.Context, companyID string, asOf time.Time) ([]policy.PenaltyPolicy, error) {
	q := GetQuerier(ctx, p.db)

	query := `
		SELECT id, company_id, name, type,
			   department_id, employment_type, priority,
			   amount, progressive, tiers,
			   active_from, active_until,
			   created_at, updated_at
		FROM penalty_policies
		WHERE company_id = $1
		  AND active_from <= $2
		  AND (active_until IS NULL OR active_until >= $2)
		ORDER BY priority ASC, created_at ASC
	`

	rows, err := q.Query(ctx, query, companyID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query penalty policies: %w", err)
	}
	defer rows.Close()

	var policies []policy.PenaltyPolicy
	for rows.Next() {
		var pol policy.PenaltyPolicy
		var tiersJSON []byte
		err := rows.Scan(
			&pol.ID, &pol.CompanyID, &pol.Name, &pol.Type,
			&pol.DepartmentID, &pol.EmploymentType, &pol.Priority,
			&pol.Amount, &pol.Progressive, &tiersJSON,
			&pol.ActiveFrom, &pol.ActiveUntil,
			&pol.CreatedAt, &pol.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan penalty policy: %w", err)
		}
		if len(tiersJSON) > 0 {
			if err := json.Unmarshal(tiersJSON, &pol.Tiers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal penalty tiers: %w", err)
			}
		}
		policies = append(policies, pol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read penalty policy rows: %w", err)
	}

	return policies, nil
}

func NewPenaltyPolicyRepository(db *database.DB) policy.PenaltyPolicyRepository {
	return &penaltyPolicyRepositoryImpl{db: db}
}
