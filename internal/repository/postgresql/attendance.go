package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
)

// uniqueViolation is the Postgres error code raised by the
// (company_id, employee_id, date) unique index on attendances.
const uniqueViolation = "23505"

type attendanceRepository struct {
	db *database.DB
}

const attendanceColumns = `
	a.id, a.employee_id, a.company_id, a.date, a.status,
	a.clock_in, a.clock_out,
	a.scheduled_clock_in, a.scheduled_clock_out,
	a.is_late, a.late_minutes, a.late_reason, a.is_excused_late, a.late_approved_by,
	a.is_early_leave, a.early_leave_minutes, a.early_leave_reason, a.is_excused_early_leave, a.early_leave_approved_by,
	a.breaks, a.total_break_minutes, a.unpaid_break_minutes, a.has_unclosed_break,
	a.clock_in_location, a.clock_out_location, a.penalties,
	a.requires_approval, a.approval_status, a.approved_by, a.approval_date, a.approval_notes,
	a.work_duration_hours,
	a.is_remote_work, a.is_manual_entry, a.is_missed_clock_out, a.is_corrected,
	a.department_id, a.employment_type,
	a.created_at, a.updated_at,
	e.name AS employee_name,
	e.position AS employee_position`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAttendance hydrates one joined attendances row, including the JSONB
// columns for breaks, penalties and location evidence.
func scanAttendance(row rowScanner) (attendance.Attendance, error) {
	var att attendance.Attendance
	var breaksJSON, penaltiesJSON []byte
	var clockInLocJSON, clockOutLocJSON []byte

	err := row.Scan(
		&att.ID, &att.EmployeeID, &att.CompanyID, &att.Date, &att.Status,
		&att.ClockIn, &att.ClockOut,
		&att.ScheduledClockIn, &att.ScheduledClockOut,
		&att.IsLate, &att.LateMinutes, &att.LateReason, &att.IsExcusedLate, &att.LateApprovedBy,
		&att.IsEarlyLeave, &att.EarlyLeaveMinutes, &att.EarlyLeaveReason, &att.IsExcusedEarlyLeave, &att.EarlyLeaveApprovedBy,
		&breaksJSON, &att.TotalBreakMinutes, &att.UnpaidBreakMinutes, &att.HasUnclosedBreak,
		&clockInLocJSON, &clockOutLocJSON, &penaltiesJSON,
		&att.RequiresApproval, &att.ApprovalStatus, &att.ApprovedBy, &att.ApprovalDate, &att.ApprovalNotes,
		&att.WorkDurationHours,
		&att.IsRemoteWork, &att.IsManualEntry, &att.IsMissedClockOut, &att.IsCorrected,
		&att.DepartmentID, &att.EmploymentType,
		&att.CreatedAt, &att.UpdatedAt,
		&att.EmployeeName, &att.EmployeePosition,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}

	if len(breaksJSON) > 0 {
		if err := json.Unmarshal(breaksJSON, &att.Breaks); err != nil {
			return attendance.Attendance{}, fmt.Errorf("failed to unmarshal breaks: %w", err)
		}
	}
	if len(penaltiesJSON) > 0 {
		if err := json.Unmarshal(penaltiesJSON, &att.Penalties); err != nil {
			return attendance.Attendance{}, fmt.Errorf("failed to unmarshal penalties: %w", err)
		}
	}
	if len(clockInLocJSON) > 0 {
		if err := json.Unmarshal(clockInLocJSON, &att.ClockInLocation); err != nil {
			return attendance.Attendance{}, fmt.Errorf("failed to unmarshal clock-in location: %w", err)
		}
	}
	if len(clockOutLocJSON) > 0 {
		if err := json.Unmarshal(clockOutLocJSON, &att.ClockOutLocation); err != nil {
			return attendance.Attendance{}, fmt.Errorf("failed to unmarshal clock-out location: %w", err)
		}
	}

	return att, nil
}

// marshalJSONB renders a value for a nullable JSONB column. Nil pointers and
// empty slices are stored as SQL NULL, not the string "null".
func marshalJSONB(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	breaksJSON, err := marshalJSONB(att.Breaks, len(att.Breaks) == 0)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to marshal breaks: %w", err)
	}
	penaltiesJSON, err := marshalJSONB(att.Penalties, len(att.Penalties) == 0)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to marshal penalties: %w", err)
	}
	clockInLocJSON, err := marshalJSONB(att.ClockInLocation, att.ClockInLocation == nil)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to marshal clock-in location: %w", err)
	}
	clockOutLocJSON, err := marshalJSONB(att.ClockOutLocation, att.ClockOutLocation == nil)
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to marshal clock-out location: %w", err)
	}

	query := `
		INSERT INTO attendances (
			employee_id, company_id, date, status,
			clock_in, clock_out,
			scheduled_clock_in, scheduled_clock_out,
			is_late, late_minutes, late_reason, is_excused_late,
			is_early_leave, early_leave_minutes, early_leave_reason, is_excused_early_leave,
			breaks, total_break_minutes, unpaid_break_minutes,
			clock_in_location, clock_out_location, penalties,
			requires_approval, approval_status, approved_by, approval_date, approval_notes,
			work_duration_hours,
			is_remote_work, is_manual_entry,
			department_id, employment_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32
		) RETURNING id, created_at, updated_at
	`

	err = q.QueryRow(ctx, query,
		att.EmployeeID,
		att.CompanyID,
		att.Date,
		att.Status,
		att.ClockIn,
		att.ClockOut,
		att.ScheduledClockIn,
		att.ScheduledClockOut,
		att.IsLate,
		att.LateMinutes,
		att.LateReason,
		att.IsExcusedLate,
		att.IsEarlyLeave,
		att.EarlyLeaveMinutes,
		att.EarlyLeaveReason,
		att.IsExcusedEarlyLeave,
		breaksJSON,
		att.TotalBreakMinutes,
		att.UnpaidBreakMinutes,
		clockInLocJSON,
		clockOutLocJSON,
		penaltiesJSON,
		att.RequiresApproval,
		att.ApprovalStatus,
		att.ApprovedBy,
		att.ApprovalDate,
		att.ApprovalNotes,
		att.WorkDurationHours,
		att.IsRemoteWork,
		att.IsManualEntry,
		att.DepartmentID,
		att.EmploymentType,
	).Scan(&att.ID, &att.CreatedAt, &att.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Pihak yang kalah race mendapat error duplikat
			return attendance.Attendance{}, attendance.ErrDuplicateClockIn
		}
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return att, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string, companyID string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN employees e ON e.id = a.employee_id
		WHERE a.id = $1 AND a.company_id = $2
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}

	return att, nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time, companyID string) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN employees e ON e.id = a.employee_id
		WHERE a.employee_id = $1
		  AND a.date = $2
		  AND a.company_id = $3
		LIMIT 1
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, date, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No record for this work day yet
		}
		return nil, fmt.Errorf("failed to get attendance by employee and date: %w", err)
	}

	return &att, nil
}

// Update implements attendance.AttendanceRepository.
// The whole mutable state is written back: the service owns the record's
// derived fields and a partial write could leave aggregates out of sync
// with the breaks they were derived from.
func (a *attendanceRepository) Update(ctx context.Context, att attendance.Attendance) error {
	q := GetQuerier(ctx, a.db)

	breaksJSON, err := marshalJSONB(att.Breaks, len(att.Breaks) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal breaks: %w", err)
	}
	penaltiesJSON, err := marshalJSONB(att.Penalties, len(att.Penalties) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal penalties: %w", err)
	}
	clockInLocJSON, err := marshalJSONB(att.ClockInLocation, att.ClockInLocation == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal clock-in location: %w", err)
	}
	clockOutLocJSON, err := marshalJSONB(att.ClockOutLocation, att.ClockOutLocation == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal clock-out location: %w", err)
	}

	query := `
		UPDATE attendances SET
			status = $1,
			clock_in = $2,
			clock_out = $3,
			is_late = $4,
			late_minutes = $5,
			late_reason = $6,
			is_excused_late = $7,
			late_approved_by = $8,
			is_early_leave = $9,
			early_leave_minutes = $10,
			early_leave_reason = $11,
			is_excused_early_leave = $12,
			early_leave_approved_by = $13,
			breaks = $14,
			total_break_minutes = $15,
			unpaid_break_minutes = $16,
			has_unclosed_break = $17,
			clock_in_location = $18,
			clock_out_location = $19,
			penalties = $20,
			requires_approval = $21,
			approval_status = $22,
			approved_by = $23,
			approval_date = $24,
			approval_notes = $25,
			work_duration_hours = $26,
			is_missed_clock_out = $27,
			is_corrected = $28,
			updated_at = $29
		WHERE id = $30 AND company_id = $31
		RETURNING id
	`

	var updatedID string
	err = q.QueryRow(ctx, query,
		att.Status,
		att.ClockIn,
		att.ClockOut,
		att.IsLate,
		att.LateMinutes,
		att.LateReason,
		att.IsExcusedLate,
		att.LateApprovedBy,
		att.IsEarlyLeave,
		att.EarlyLeaveMinutes,
		att.EarlyLeaveReason,
		att.IsExcusedEarlyLeave,
		att.EarlyLeaveApprovedBy,
		breaksJSON,
		att.TotalBreakMinutes,
		att.UnpaidBreakMinutes,
		att.HasUnclosedBreak,
		clockInLocJSON,
		clockOutLocJSON,
		penaltiesJSON,
		att.RequiresApproval,
		att.ApprovalStatus,
		att.ApprovedBy,
		att.ApprovalDate,
		att.ApprovalNotes,
		att.WorkDurationHours,
		att.IsMissedClockOut,
		att.IsCorrected,
		time.Now(),
		att.ID,
		att.CompanyID,
	).Scan(&updatedID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.ErrAttendanceNotFound
		}
		return fmt.Errorf("failed to update attendance: %w", err)
	}

	return nil
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter, companyID string) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, a.db)

	// Build WHERE clause
	baseWhere := "a.company_id = $1"
	args := []interface{}{companyID}
	argIdx := 2

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND a.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.ApprovalStatus != nil && *filter.ApprovalStatus != "" {
		baseWhere += fmt.Sprintf(" AND a.approval_status = $%d", argIdx)
		args = append(args, *filter.ApprovalStatus)
		argIdx++
	}
	if filter.RequiresApproval != nil {
		baseWhere += fmt.Sprintf(" AND a.requires_approval = $%d", argIdx)
		args = append(args, *filter.RequiresApproval)
		argIdx++
	}
	if filter.DateFrom != nil {
		baseWhere += fmt.Sprintf(" AND a.date >= $%d", argIdx)
		args = append(args, *filter.DateFrom)
		argIdx++
	}
	if filter.DateTo != nil {
		baseWhere += fmt.Sprintf(" AND a.date <= $%d", argIdx)
		args = append(args, *filter.DateTo)
		argIdx++
	}

	// Count total
	countQuery := "SELECT COUNT(*) FROM attendances a WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT `+attendanceColumns+`
		FROM attendances a
		LEFT JOIN employees e ON e.id = a.employee_id
		WHERE %s
		ORDER BY a.date DESC, a.clock_in DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	offset := (filter.Page - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}

	return attendances, total, nil
}

// GetMyAttendance implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetMyAttendance(ctx context.Context, employeeID string, filter attendance.MyAttendanceFilter, companyID string) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, a.db)

	baseWhere := "a.employee_id = $1 AND a.company_id = $2"
	args := []interface{}{employeeID, companyID}
	argIdx := 3

	if filter.DateFrom != nil {
		baseWhere += fmt.Sprintf(" AND a.date >= $%d", argIdx)
		args = append(args, *filter.DateFrom)
		argIdx++
	}
	if filter.DateTo != nil {
		baseWhere += fmt.Sprintf(" AND a.date <= $%d", argIdx)
		args = append(args, *filter.DateTo)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM attendances a WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT `+attendanceColumns+`
		FROM attendances a
		LEFT JOIN employees e ON e.id = a.employee_id
		WHERE %s
		ORDER BY a.date DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	offset := (filter.Page - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}

	return attendances, total, nil
}

// ListOpenForDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOpenForDate(ctx context.Context, date time.Time, companyID string) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN employees e ON e.id = a.employee_id
		WHERE a.date = $1
		  AND a.company_id = $2
		  AND a.status = $3
		ORDER BY a.clock_in ASC
	`

	rows, err := q.Query(ctx, query, date, companyID, attendance.StatusClockedIn)
	if err != nil {
		return nil, fmt.Errorf("failed to query open attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}

	return attendances, nil
}

// CountPriorOccurrences implements attendance.AttendanceRepository.
// Counts finalized violations of one type in [periodStart, periodEnd),
// feeding the progressive penalty tiers. Excused violations do not count,
// and neither does the excluded record: a correction re-evaluates a row
// that is already persisted with its violation flags set.
func (a *attendanceRepository) CountPriorOccurrences(ctx context.Context, employeeID string, violation policy.PenaltyType, periodStart, periodEnd time.Time, excludeID string, companyID string) (int, error) {
	q := GetQuerier(ctx, a.db)

	var condition string
	switch violation {
	case policy.PenaltyLate:
		condition = "is_late = TRUE AND is_excused_late = FALSE"
	case policy.PenaltyEarlyLeave:
		condition = "is_early_leave = TRUE AND is_excused_early_leave = FALSE"
	case policy.PenaltyMissedClockOut:
		condition = "is_missed_clock_out = TRUE"
	default:
		condition = "penalties @> " + fmt.Sprintf(`'[{"type": "%s"}]'`, violation)
	}

	// id::text so the empty (exclude nothing) sentinel never hits uuid parsing
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM attendances
		WHERE employee_id = $1
		  AND company_id = $2
		  AND date >= $3
		  AND date < $4
		  AND id::text <> $5
		  AND %s
	`, condition)

	var count int
	err := q.QueryRow(ctx, query, employeeID, companyID, periodStart, periodEnd, excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prior occurrences: %w", err)
	}

	return count, nil
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
