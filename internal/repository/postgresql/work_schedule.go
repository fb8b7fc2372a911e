package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
)

type workScheduleRepositoryImpl struct {
	db *database.DB
}

// GetEmployeeSchedule implements policy.WorkScheduleRepository.
// Resolves the schedule effective for the employee on the given date:
// a dated assignment override wins over the employee's default schedule.
func (w *workScheduleRepositoryImpl) GetEmployeeSchedule(ctx context.Context, employeeID string, asOf time.Time, companyID string) (*policy.WorkSchedulePolicy, error) {
	q := GetQuerier(ctx, w.db)

	query := `
		WITH target_schedule AS (
			SELECT COALESCE(
				-- PRIORITAS 1: Cek Override (Assignments)
				(
					SELECT work_schedule_id
					FROM employee_schedule_assignments
					WHERE employee_id = $1
					  AND $2::date BETWEEN start_date AND end_date
					LIMIT 1
				),
				-- PRIORITAS 2: Cek Default (Employee Master)
				(
					SELECT work_schedule_id
					FROM employees
					WHERE id = $1 AND company_id = $3
				)
			) AS id
		)
		SELECT
			ws.id, ws.company_id, ws.name, ws.created_at, ws.updated_at,
			wsd.day_of_week, wsd.clock_in_time, wsd.clock_out_time,
			wsd.break_duration_minutes, wsd.break_is_paid
		FROM target_schedule ts
		JOIN work_schedules ws ON ws.id = ts.id
		JOIN work_schedule_days wsd ON wsd.work_schedule_id = ws.id
		WHERE ws.company_id = $3
		  AND ws.deleted_at IS NULL
	`

	rows, err := q.Query(ctx, query, employeeID, asOf, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee schedule: %w", err)
	}
	defer rows.Close()

	var schedule *policy.WorkSchedulePolicy
	for rows.Next() {
		var dayOfWeek int
		var day policy.ScheduleDay

		if schedule == nil {
			schedule = &policy.WorkSchedulePolicy{Days: make(map[time.Weekday]policy.ScheduleDay)}
		}
		err := rows.Scan(
			&schedule.ID, &schedule.CompanyID, &schedule.Name, &schedule.CreatedAt, &schedule.UpdatedAt,
			&dayOfWeek, &day.ClockIn, &day.ClockOut,
			&day.BreakDurationMinutes, &day.BreakIsPaid,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule day: %w", err)
		}
		schedule.Days[time.Weekday(dayOfWeek)] = day
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedule rows: %w", err)
	}

	if schedule == nil {
		return nil, policy.ErrNoScheduleFound
	}

	return schedule, nil
}

func NewWorkScheduleRepository(db *database.DB) policy.WorkScheduleRepository {
	return &workScheduleRepositoryImpl{db: db}
}
