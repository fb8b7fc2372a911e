package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
)

type geofenceRepositoryImpl struct {
	db *database.DB
}

// GetActiveGeofence implements policy.GeofenceRepository.
// Returns the most specific active fence for the employee's attributes:
// a fence scoped to the department or employment type wins over a
// company-wide one. Nil when no fence is configured.
func (g *geofenceRepositoryImpl) GetActiveGeofence(ctx context.Context, companyID string, departmentID, employmentType *string) (*policy.GeofenceConfig, error) {
	q := GetQuerier(ctx, g.db)

	query := `
		SELECT id, company_id, name, latitude, longitude, radius_meters,
			   enforce_on_clock_in, enforce_on_clock_out,
			   department_id, employment_type,
			   created_at, updated_at
		FROM geofences
		WHERE company_id = $1
		  AND is_active = TRUE
		  AND (department_id IS NULL OR department_id = $2)
		  AND (employment_type IS NULL OR employment_type = $3)
		ORDER BY (department_id IS NOT NULL)::int + (employment_type IS NOT NULL)::int DESC
		LIMIT 1
	`

	var fence policy.GeofenceConfig
	err := q.QueryRow(ctx, query, companyID, departmentID, employmentType).Scan(
		&fence.ID, &fence.CompanyID, &fence.Name, &fence.Latitude, &fence.Longitude, &fence.RadiusMeters,
		&fence.EnforceOnClockIn, &fence.EnforceOnClockOut,
		&fence.DepartmentID, &fence.EmploymentType,
		&fence.CreatedAt, &fence.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No fence configured for this scope
		}
		return nil, fmt.Errorf("failed to get active geofence: %w", err)
	}

	return &fence, nil
}

func NewGeofenceRepository(db *database.DB) policy.GeofenceRepository {
	return &geofenceRepositoryImpl{db: db}
}
