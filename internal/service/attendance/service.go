package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/employee"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/geo"
	"github.com/worklens-hr/attendance-backend-go/internal/repository/postgresql"
)

type AttendanceServiceImpl struct {
	db *database.DB
	attendance.AttendanceRepository
	employee.EmployeeRepository
	policy.WorkScheduleRepository
	policy.GeofenceRepository
	policy.PenaltyPolicyRepository
	authorizer attendance.ApproverAuthorizer
	timeCalc   *TimeCalculator
	evaluator  *PenaltyEvaluator

	location             *time.Location
	autoApproveThreshold int
	now                  func() time.Time
}

func NewAttendanceService(
	db *database.DB,
	attendanceRepo attendance.AttendanceRepository,
	employeeRepo employee.EmployeeRepository,
	scheduleRepo policy.WorkScheduleRepository,
	geofenceRepo policy.GeofenceRepository,
	penaltyRepo policy.PenaltyPolicyRepository,
	authorizer attendance.ApproverAuthorizer,
	timeCalc *TimeCalculator,
	evaluator *PenaltyEvaluator,
	location *time.Location,
	autoApproveThreshold int,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		db:                      db,
		AttendanceRepository:    attendanceRepo,
		EmployeeRepository:      employeeRepo,
		WorkScheduleRepository:  scheduleRepo,
		GeofenceRepository:      geofenceRepo,
		PenaltyPolicyRepository: penaltyRepo,
		authorizer:              authorizer,
		timeCalc:                timeCalc,
		evaluator:               evaluator,
		location:                location,
		autoApproveThreshold:    autoApproveThreshold,
		now:                     time.Now,
	}
}

// inTx runs fn inside one database transaction, with the tx propagated to
// the repositories through the context. A nil pool (repositories that do
// not share a database) runs fn directly.
func (s *AttendanceServiceImpl) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return postgresql.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, "tx", tx))
	})
}

// claimsFromContext extracts the actor identity from the verified JWT.
func claimsFromContext(ctx context.Context) (companyID, employeeID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", "", "", fmt.Errorf("company_id claim is missing or invalid")
	}

	employeeID, _ = claims["employee_id"].(string)
	userID, _ = claims["user_id"].(string)

	return companyID, employeeID, userID, nil
}

// workDay truncates a local timestamp to tenant-local midnight.
func workDay(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// timePtrToString safely converts a *time.Time to a string.
func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	format := t.Format("2006-01-02 15:04:05")
	return &format
}

// ClockIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, employeeID, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if employeeID == "" {
		return attendance.AttendanceResponse{}, fmt.Errorf("employee_id claim is missing or invalid")
	}

	nowUTC := s.now().UTC()
	nowLocal := nowUTC.In(s.location)
	day := workDay(nowLocal)

	var created attendance.Attendance
	err = s.inTx(ctx, func(ctx context.Context) error {
		existing, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, day, companyID)
		if err != nil {
			return fmt.Errorf("failed to check today's attendance: %w", err)
		}
		if existing != nil {
			return attendance.ErrDuplicateClockIn
		}

		emp, err := s.EmployeeRepository.GetByID(ctx, employeeID, companyID)
		if err != nil {
			return fmt.Errorf("failed to get employee: %w", err)
		}

		schedule, err := s.WorkScheduleRepository.GetEmployeeSchedule(ctx, employeeID, nowLocal, companyID)
		if err != nil {
			if errors.Is(err, policy.ErrNoScheduleFound) {
				return err
			}
			return fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}

		window := s.timeCalc.ResolveScheduledWindow(schedule, nowLocal.Weekday())

		lateness, err := s.timeCalc.ComputeLateness(nowLocal, window.ClockIn)
		if err != nil {
			return fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}

		fence, err := s.GeofenceRepository.GetActiveGeofence(ctx, companyID, emp.DepartmentID, emp.EmploymentType)
		if err != nil {
			return fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}

		clockInLocation := evaluateLocation(req.Latitude, req.Longitude, req.AccuracyMeters, fence)

		policies, err := s.PenaltyPolicyRepository.GetPenaltyPolicies(ctx, companyID, nowLocal)
		if err != nil {
			return fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}

		penalties, err := s.evaluator.Evaluate(ctx, ViolationFacts{
			EmployeeID:     employeeID,
			CompanyID:      companyID,
			Date:           day,
			MinutesLate:    lateness.Minutes,
			DepartmentID:   emp.DepartmentID,
			EmploymentType: emp.EmploymentType,
		}, policies)
		if err != nil {
			return fmt.Errorf("failed to evaluate penalties: %w", err)
		}

		decision := DecideApproval(ApprovalInput{
			GeofenceEnforced:            fence != nil && fence.EnforceOnClockIn,
			Location:                    clockInLocation,
			IsRemoteWork:                req.IsRemoteWork,
			PenaltyCount:                len(penalties),
			ViolationMinutes:            lateness.Minutes,
			AutoApproveThresholdMinutes: s.autoApproveThreshold,
			Now:                         nowUTC,
		})

		data := attendance.Attendance{
			EmployeeID: employeeID,
			CompanyID:  companyID,

			// Date is the tenant-local work day, not a timestamp
			Date:   day,
			Status: attendance.StatusClockedIn,

			// Waktu absolut disimpan UTC
			ClockIn: &nowUTC,

			// Schedule snapshot, immutable for the record's lifetime
			ScheduledClockIn:  window.ClockIn,
			ScheduledClockOut: window.ClockOut,

			IsLate:      lateness.IsLate,
			LateMinutes: lateness.Minutes,
			LateReason:  req.LateReason,

			ClockInLocation: clockInLocation,
			Penalties:       penalties,

			RequiresApproval: decision.RequiresApproval,
			ApprovalStatus:   decision.Status,
			ApprovedBy:       decision.ApprovedBy,
			ApprovalDate:     decision.ApprovalDate,

			IsRemoteWork: req.IsRemoteWork,

			EmployeeName:     &emp.Name,
			EmployeePosition: emp.Position,
			DepartmentID:     emp.DepartmentID,
			EmploymentType:   emp.EmploymentType,
		}

		created, err = s.AttendanceRepository.Create(ctx, data)
		if err != nil {
			// A concurrent clock-in can win between the existence check and
			// the insert; the unique index turns that into ErrDuplicateClockIn.
			if errors.Is(err, attendance.ErrDuplicateClockIn) {
				return attendance.ErrDuplicateClockIn
			}
			return fmt.Errorf("failed to create attendance record: %w", err)
		}

		return nil
	})
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	return mapAttendanceToResponse(created), nil
}

// ClockOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockOutRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, employeeID, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if employeeID == "" {
		return attendance.AttendanceResponse{}, fmt.Errorf("employee_id claim is missing or invalid")
	}

	nowUTC := s.now().UTC()
	nowLocal := nowUTC.In(s.location)
	day := workDay(nowLocal)

	rec, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, day, companyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if rec == nil || rec.ClockIn == nil {
		return attendance.AttendanceResponse{}, attendance.ErrNoActiveClockIn
	}
	if rec.Status == attendance.StatusClockedOut {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyClockedOut
	}
	if !nowUTC.After(*rec.ClockIn) {
		return attendance.AttendanceResponse{}, attendance.ErrInvalidTimeWindow
	}

	// An open break is flagged, never closed with a guessed duration
	if rec.OpenBreak() != nil {
		rec.HasUnclosedBreak = true
	}
	totals := s.timeCalc.AggregateBreaks(rec.Breaks)
	rec.TotalBreakMinutes = totals.TotalMinutes
	rec.UnpaidBreakMinutes = totals.UnpaidMinutes

	earliness, err := s.timeCalc.ComputeEarlyLeave(nowLocal, rec.ScheduledClockOut)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}

	fence, err := s.GeofenceRepository.GetActiveGeofence(ctx, companyID, rec.DepartmentID, rec.EmploymentType)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}

	rec.ClockOutLocation = evaluateLocation(req.Latitude, req.Longitude, req.AccuracyMeters, fence)

	// A fence can be enforced on clock-out independently of clock-in. An
	// existing approval sub-state is never downgraded.
	if fence != nil && fence.EnforceOnClockOut && rec.ApprovalStatus == nil {
		locDecision := DecideApproval(ApprovalInput{
			GeofenceEnforced: true,
			Location:         rec.ClockOutLocation,
			IsRemoteWork:     rec.IsRemoteWork,
		})
		if locDecision.RequiresApproval {
			rec.RequiresApproval = true
			rec.ApprovalStatus = locDecision.Status
		}
	}

	// Kalkulasi jam kerja bersih
	duration := s.timeCalc.ComputeDurationHours(*rec.ClockIn, nowUTC, rec.UnpaidBreakMinutes)
	rec.WorkDurationHours = &duration

	rec.ClockOut = &nowUTC
	rec.Status = attendance.StatusClockedOut
	rec.IsEarlyLeave = earliness.IsLate
	rec.EarlyLeaveMinutes = earliness.Minutes
	rec.EarlyLeaveReason = req.EarlyLeaveReason

	if earliness.Minutes > 0 {
		policies, err := s.PenaltyPolicyRepository.GetPenaltyPolicies(ctx, companyID, nowLocal)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}

		earlyPenalties, err := s.evaluator.Evaluate(ctx, ViolationFacts{
			EmployeeID:     employeeID,
			CompanyID:      companyID,
			Date:           rec.Date,
			MinutesEarly:   earliness.Minutes,
			DepartmentID:   rec.DepartmentID,
			EmploymentType: rec.EmploymentType,
		}, policies)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("failed to evaluate penalties: %w", err)
		}

		// Append-only; clock-in penalties are never touched here
		rec.Penalties = append(rec.Penalties, earlyPenalties...)

		// New penalties can queue a record that was clean at clock-in, but an
		// existing approval sub-state is never downgraded.
		if len(earlyPenalties) > 0 && rec.ApprovalStatus == nil {
			decision := DecideApproval(ApprovalInput{
				PenaltyCount:                len(earlyPenalties),
				ViolationMinutes:            earliness.Minutes,
				AutoApproveThresholdMinutes: s.autoApproveThreshold,
				Now:                         nowUTC,
			})
			rec.RequiresApproval = decision.RequiresApproval
			rec.ApprovalStatus = decision.Status
		}
	}

	if err := s.AttendanceRepository.Update(ctx, *rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	return mapAttendanceToResponse(*rec), nil
}

// StartBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.StartBreakRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, employeeID, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	nowUTC := s.now().UTC()
	nowLocal := nowUTC.In(s.location)
	day := workDay(nowLocal)

	rec, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, day, companyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if rec == nil {
		return attendance.AttendanceResponse{}, attendance.ErrNoActiveClockIn
	}
	if rec.Status == attendance.StatusClockedOut {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyClockedOut
	}
	// Breaks must not overlap
	if rec.OpenBreak() != nil {
		return attendance.AttendanceResponse{}, attendance.ErrOpenBreakExists
	}

	schedule, err := s.WorkScheduleRepository.GetEmployeeSchedule(ctx, employeeID, nowLocal, companyID)
	if err != nil && !errors.Is(err, policy.ErrNoScheduleFound) {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}
	window := s.timeCalc.ResolveScheduledWindow(schedule, nowLocal.Weekday())

	rec.Breaks = append(rec.Breaks, attendance.BreakRecord{
		ID:                       uuid.NewString(),
		Type:                     attendance.BreakType(req.Type),
		StartTime:                nowUTC,
		ScheduledDurationMinutes: window.BreakDurationMinutes,
		IsPaid:                   window.BreakIsPaid,
	})

	if err := s.AttendanceRepository.Update(ctx, *rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	return mapAttendanceToResponse(*rec), nil
}

// EndBreak implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) EndBreak(ctx context.Context) (attendance.AttendanceResponse, error) {
	companyID, employeeID, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	nowUTC := s.now().UTC()
	nowLocal := nowUTC.In(s.location)
	day := workDay(nowLocal)

	rec, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, employeeID, day, companyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if rec == nil {
		return attendance.AttendanceResponse{}, attendance.ErrNoActiveClockIn
	}

	open := rec.OpenBreak()
	if open == nil {
		if len(rec.Breaks) > 0 {
			return attendance.AttendanceResponse{}, attendance.ErrBreakAlreadyClosed
		}
		return attendance.AttendanceResponse{}, attendance.ErrNoOpenBreak
	}

	duration := int(math.Floor(nowUTC.Sub(open.StartTime).Minutes()))
	open.EndTime = &nowUTC
	open.DurationMinutes = &duration

	// Aggregates are derived from breaks and recomputed whenever one closes
	totals := s.timeCalc.AggregateBreaks(rec.Breaks)
	rec.TotalBreakMinutes = totals.TotalMinutes
	rec.UnpaidBreakMinutes = totals.UnpaidMinutes

	if err := s.AttendanceRepository.Update(ctx, *rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	return mapAttendanceToResponse(*rec), nil
}

// CreateManualEntry implements attendance.AttendanceService.
// Manual entries bypass the clocked-in intermediate state when a clock-out
// time is supplied, and are pre-approved by the creating HR user.
func (s *AttendanceServiceImpl) CreateManualEntry(ctx context.Context, req attendance.ManualEntryRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, _, userID, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if userID == "" {
		return attendance.AttendanceResponse{}, fmt.Errorf("user_id claim is missing or invalid")
	}

	date, _ := time.ParseInLocation("2006-01-02", req.Date, s.location)
	clockIn, _ := time.Parse(time.RFC3339, req.ClockInTime)
	clockInUTC := clockIn.UTC()

	var clockOutUTC *time.Time
	if req.ClockOutTime != nil {
		parsed, _ := time.Parse(time.RFC3339, *req.ClockOutTime)
		if !parsed.After(clockIn) {
			return attendance.AttendanceResponse{}, attendance.ErrInvalidTimeWindow
		}
		utc := parsed.UTC()
		clockOutUTC = &utc
	}

	existing, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, req.EmployeeID, date, companyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check existing attendance: %w", err)
	}
	if existing != nil {
		return attendance.AttendanceResponse{}, attendance.ErrDuplicateClockIn
	}

	emp, err := s.EmployeeRepository.GetByID(ctx, req.EmployeeID, companyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}

	schedule, err := s.WorkScheduleRepository.GetEmployeeSchedule(ctx, req.EmployeeID, date, companyID)
	if err != nil {
		if errors.Is(err, policy.ErrNoScheduleFound) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}
	window := s.timeCalc.ResolveScheduledWindow(schedule, date.Weekday())

	lateness, err := s.timeCalc.ComputeLateness(clockIn.In(s.location), window.ClockIn)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}

	earliness := Lateness{}
	if clockOutUTC != nil {
		earliness, err = s.timeCalc.ComputeEarlyLeave(clockOutUTC.In(s.location), window.ClockOut)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}
	}

	// Manual entries are conventionally excused: penalties are suppressed
	// unless the caller opts out. A policy choice made at the call site, not
	// an engine rule.
	suppress := req.SuppressPenalties == nil || *req.SuppressPenalties

	var penalties []attendance.Penalty
	if !suppress {
		policies, err := s.PenaltyPolicyRepository.GetPenaltyPolicies(ctx, companyID, date)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}
		penalties, err = s.evaluator.Evaluate(ctx, ViolationFacts{
			EmployeeID:     req.EmployeeID,
			CompanyID:      companyID,
			Date:           date,
			MinutesLate:    lateness.Minutes,
			MinutesEarly:   earliness.Minutes,
			DepartmentID:   emp.DepartmentID,
			EmploymentType: emp.EmploymentType,
		}, policies)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("failed to evaluate penalties: %w", err)
		}
	}

	violationMinutes := lateness.Minutes
	if earliness.Minutes > violationMinutes {
		violationMinutes = earliness.Minutes
	}

	nowUTC := s.now().UTC()
	decision := DecideApproval(ApprovalInput{
		IsRemoteWork:                req.IsRemoteWork,
		PenaltyCount:                len(penalties),
		ViolationMinutes:            violationMinutes,
		AutoApproveThresholdMinutes: s.autoApproveThreshold,
		IsManualEntry:               true,
		CreatedBy:                   userID,
		Now:                         nowUTC,
	})

	status := attendance.StatusClockedIn
	var durationHours *float64
	if clockOutUTC != nil {
		status = attendance.StatusClockedOut
		d := s.timeCalc.ComputeDurationHours(clockInUTC, *clockOutUTC, 0)
		durationHours = &d
	}

	data := attendance.Attendance{
		EmployeeID: req.EmployeeID,
		CompanyID:  companyID,
		Date:       date,
		Status:     status,

		ClockIn:  &clockInUTC,
		ClockOut: clockOutUTC,

		ScheduledClockIn:  window.ClockIn,
		ScheduledClockOut: window.ClockOut,

		IsLate:        lateness.IsLate,
		LateMinutes:   lateness.Minutes,
		IsExcusedLate: suppress && lateness.IsLate,

		IsEarlyLeave:        earliness.IsLate,
		EarlyLeaveMinutes:   earliness.Minutes,
		IsExcusedEarlyLeave: suppress && earliness.IsLate,

		Penalties: penalties,

		RequiresApproval: decision.RequiresApproval,
		ApprovalStatus:   decision.Status,
		ApprovedBy:       decision.ApprovedBy,
		ApprovalDate:     decision.ApprovalDate,
		ApprovalNotes:    &req.Reason,

		WorkDurationHours: durationHours,

		IsRemoteWork:  req.IsRemoteWork,
		IsManualEntry: true,

		EmployeeName:     &emp.Name,
		EmployeePosition: emp.Position,
		DepartmentID:     emp.DepartmentID,
		EmploymentType:   emp.EmploymentType,
	}

	created, err := s.AttendanceRepository.Create(ctx, data)
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateClockIn) {
			return attendance.AttendanceResponse{}, attendance.ErrDuplicateClockIn
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	return mapAttendanceToResponse(created), nil
}

// RunDailySweep implements attendance.AttendanceService.
// Closes out a finished work day: records still clocked-in are flagged as
// missed clock-outs (never closed with a guessed time) and scheduled
// employees with no record at all are marked absent. The caller owns
// scheduling; running it twice for the same day is harmless.
func (s *AttendanceServiceImpl) RunDailySweep(ctx context.Context, req attendance.DailySweepRequest) (attendance.DailySweepResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DailySweepResponse{}, err
	}

	companyID, _, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.DailySweepResponse{}, err
	}

	date, _ := time.ParseInLocation("2006-01-02", req.Date, s.location)

	// Only a finished work day can be swept
	nowLocal := s.now().UTC().In(s.location)
	if !date.Before(workDay(nowLocal)) {
		return attendance.DailySweepResponse{}, attendance.ErrInvalidTimeWindow
	}

	policies, err := s.PenaltyPolicyRepository.GetPenaltyPolicies(ctx, companyID, date)
	if err != nil {
		return attendance.DailySweepResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}

	result := attendance.DailySweepResponse{
		Date:                req.Date,
		MissedClockOutIDs:   []string{},
		AbsentAttendanceIDs: []string{},
	}

	open, err := s.AttendanceRepository.ListOpenForDate(ctx, date, companyID)
	if err != nil {
		return attendance.DailySweepResponse{}, fmt.Errorf("failed to list open attendances: %w", err)
	}

	for _, rec := range open {
		penalties, err := s.evaluator.Evaluate(ctx, ViolationFacts{
			EmployeeID:       rec.EmployeeID,
			CompanyID:        companyID,
			Date:             rec.Date,
			IsMissedClockOut: true,
			DepartmentID:     rec.DepartmentID,
			EmploymentType:   rec.EmploymentType,
			ExcludeRecordID:  rec.ID,
		}, policies)
		if err != nil {
			return attendance.DailySweepResponse{}, fmt.Errorf("failed to evaluate penalties: %w", err)
		}

		rec.IsMissedClockOut = true
		rec.Penalties = append(rec.Penalties, penalties...)
		if len(penalties) > 0 && rec.ApprovalStatus == nil {
			decision := DecideApproval(ApprovalInput{
				PenaltyCount:                len(penalties),
				AutoApproveThresholdMinutes: s.autoApproveThreshold,
				Now:                         s.now().UTC(),
			})
			rec.RequiresApproval = decision.RequiresApproval
			rec.ApprovalStatus = decision.Status
		}

		if err := s.AttendanceRepository.Update(ctx, rec); err != nil {
			return attendance.DailySweepResponse{}, fmt.Errorf("failed to flag missed clock-out: %w", err)
		}
		result.MissedClockOutIDs = append(result.MissedClockOutIDs, rec.ID)
	}

	absentees, err := s.EmployeeRepository.ListWithoutAttendance(ctx, date, companyID)
	if err != nil {
		return attendance.DailySweepResponse{}, fmt.Errorf("failed to list absent employees: %w", err)
	}

	for _, emp := range absentees {
		schedule, err := s.WorkScheduleRepository.GetEmployeeSchedule(ctx, emp.ID, date, companyID)
		if err != nil {
			if errors.Is(err, policy.ErrNoScheduleFound) {
				continue // nothing was expected of them
			}
			return attendance.DailySweepResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}
		if schedule == nil {
			continue
		}
		scheduleDay, ok := schedule.Days[date.Weekday()]
		if !ok {
			continue // not a scheduled work day
		}

		penalties, err := s.evaluator.Evaluate(ctx, ViolationFacts{
			EmployeeID:     emp.ID,
			CompanyID:      companyID,
			Date:           date,
			IsAbsent:       true,
			DepartmentID:   emp.DepartmentID,
			EmploymentType: emp.EmploymentType,
		}, policies)
		if err != nil {
			return attendance.DailySweepResponse{}, fmt.Errorf("failed to evaluate penalties: %w", err)
		}

		decision := DecideApproval(ApprovalInput{
			PenaltyCount:                len(penalties),
			AutoApproveThresholdMinutes: s.autoApproveThreshold,
			Now:                         s.now().UTC(),
		})

		created, err := s.AttendanceRepository.Create(ctx, attendance.Attendance{
			EmployeeID: emp.ID,
			CompanyID:  companyID,
			Date:       date,
			Status:     attendance.StatusAbsent,

			ScheduledClockIn:  scheduleDay.ClockIn,
			ScheduledClockOut: scheduleDay.ClockOut,

			Penalties: penalties,

			RequiresApproval: decision.RequiresApproval,
			ApprovalStatus:   decision.Status,

			EmployeeName:     &emp.Name,
			EmployeePosition: emp.Position,
			DepartmentID:     emp.DepartmentID,
			EmploymentType:   emp.EmploymentType,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrDuplicateClockIn) {
				continue // a record appeared while the sweep was running
			}
			return attendance.DailySweepResponse{}, fmt.Errorf("failed to create absence record: %w", err)
		}
		result.AbsentAttendanceIDs = append(result.AbsentAttendanceIDs, created.ID)
	}

	return result, nil
}

// CorrectAttendance implements attendance.AttendanceService.
// The explicit correction flow: clock times change, every derived fact is
// recomputed and penalties are reissued from scratch rather than edited.
func (s *AttendanceServiceImpl) CorrectAttendance(ctx context.Context, req attendance.CorrectAttendanceRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, _, userID, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	rec, err := s.AttendanceRepository.GetByID(ctx, req.ID, companyID)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	if req.ClockInTime != nil {
		parsed, _ := time.Parse(time.RFC3339, *req.ClockInTime)
		utc := parsed.UTC()
		rec.ClockIn = &utc
	}
	if req.ClockOutTime != nil {
		parsed, _ := time.Parse(time.RFC3339, *req.ClockOutTime)
		utc := parsed.UTC()
		rec.ClockOut = &utc
	}

	if rec.ClockIn != nil && rec.ClockOut != nil && !rec.ClockOut.After(*rec.ClockIn) {
		return attendance.AttendanceResponse{}, attendance.ErrInvalidTimeWindow
	}

	// A corrected absence with a clock-in is no longer an absence
	if rec.Status == attendance.StatusAbsent && rec.ClockIn != nil {
		rec.Status = attendance.StatusClockedIn
	}

	// Recompute against the immutable schedule snapshot
	lateness := Lateness{}
	if rec.ClockIn != nil {
		lateness, err = s.timeCalc.ComputeLateness(rec.ClockIn.In(s.location), rec.ScheduledClockIn)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}
	}
	rec.IsLate = lateness.IsLate
	rec.LateMinutes = lateness.Minutes

	earliness := Lateness{}
	if rec.ClockOut != nil {
		earliness, err = s.timeCalc.ComputeEarlyLeave(rec.ClockOut.In(s.location), rec.ScheduledClockOut)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
		}
		rec.Status = attendance.StatusClockedOut
		rec.IsMissedClockOut = false
	}
	rec.IsEarlyLeave = earliness.IsLate
	rec.EarlyLeaveMinutes = earliness.Minutes

	totals := s.timeCalc.AggregateBreaks(rec.Breaks)
	rec.TotalBreakMinutes = totals.TotalMinutes
	rec.UnpaidBreakMinutes = totals.UnpaidMinutes

	if rec.ClockIn != nil && rec.ClockOut != nil {
		duration := s.timeCalc.ComputeDurationHours(*rec.ClockIn, *rec.ClockOut, rec.UnpaidBreakMinutes)
		rec.WorkDurationHours = &duration
	}

	// Reissue penalties: the old list is replaced wholesale, never mutated
	policies, err := s.PenaltyPolicyRepository.GetPenaltyPolicies(ctx, companyID, rec.Date)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", policy.ErrPolicyLookup, err)
	}
	penalties, err := s.evaluator.Evaluate(ctx, ViolationFacts{
		EmployeeID:       rec.EmployeeID,
		CompanyID:        companyID,
		Date:             rec.Date,
		MinutesLate:      lateness.Minutes,
		MinutesEarly:     earliness.Minutes,
		IsMissedClockOut: rec.IsMissedClockOut,
		DepartmentID:     rec.DepartmentID,
		EmploymentType:   rec.EmploymentType,
		// The record's own persisted flags must not count toward its tier
		ExcludeRecordID: rec.ID,
	}, policies)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to evaluate penalties: %w", err)
	}
	rec.Penalties = penalties

	violationMinutes := lateness.Minutes
	if earliness.Minutes > violationMinutes {
		violationMinutes = earliness.Minutes
	}

	decision := DecideApproval(ApprovalInput{
		GeofenceEnforced:            false, // location evidence is not re-captured on correction
		Location:                    rec.ClockInLocation,
		IsRemoteWork:                rec.IsRemoteWork,
		PenaltyCount:                len(penalties),
		ViolationMinutes:            violationMinutes,
		AutoApproveThresholdMinutes: s.autoApproveThreshold,
		Now:                         s.now().UTC(),
	})
	rec.RequiresApproval = decision.RequiresApproval
	rec.ApprovalStatus = decision.Status
	rec.ApprovedBy = decision.ApprovedBy
	rec.ApprovalDate = decision.ApprovalDate

	rec.IsCorrected = true
	// The sign-off only means anything while the record is actually late
	if rec.IsLate {
		rec.LateApprovedBy = &userID
	} else {
		rec.LateApprovedBy = nil
	}
	rec.ApprovalNotes = &req.Reason

	if err := s.AttendanceRepository.Update(ctx, rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	return mapAttendanceToResponse(rec), nil
}

// ApproveAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ApproveAttendance(ctx context.Context, req attendance.ApproveAttendanceRequest) (attendance.AttendanceResponse, error) {
	companyID, _, userID, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if userID == "" {
		return attendance.AttendanceResponse{}, fmt.Errorf("user_id claim is missing or invalid")
	}

	rec, err := s.AttendanceRepository.GetByID(ctx, req.ID, companyID)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	if err := s.guardPending(rec); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	authorized, err := s.authorizer.IsAuthorizedApprover(ctx, userID, rec)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check approver authorization: %w", err)
	}
	if !authorized {
		return attendance.AttendanceResponse{}, attendance.ErrUnauthorizedApproval
	}

	now := s.now().UTC()
	status := attendance.ApprovalApproved
	rec.ApprovalStatus = &status
	rec.RequiresApproval = false
	rec.ApprovedBy = &userID
	rec.ApprovalDate = &now
	rec.ApprovalNotes = req.Notes
	if rec.IsLate {
		rec.IsExcusedLate = true
		rec.LateApprovedBy = &userID
	}
	if rec.IsEarlyLeave {
		rec.IsExcusedEarlyLeave = true
		rec.EarlyLeaveApprovedBy = &userID
	}

	if err := s.AttendanceRepository.Update(ctx, rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to approve attendance: %w", err)
	}

	return mapAttendanceToResponse(rec), nil
}

// RejectAttendance implements attendance.AttendanceService.
// Rejected records are kept for audit, never deleted.
func (s *AttendanceServiceImpl) RejectAttendance(ctx context.Context, req attendance.RejectAttendanceRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	companyID, _, userID, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if userID == "" {
		return attendance.AttendanceResponse{}, fmt.Errorf("user_id claim is missing or invalid")
	}

	rec, err := s.AttendanceRepository.GetByID(ctx, req.ID, companyID)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	if err := s.guardPending(rec); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	authorized, err := s.authorizer.IsAuthorizedApprover(ctx, userID, rec)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check approver authorization: %w", err)
	}
	if !authorized {
		return attendance.AttendanceResponse{}, attendance.ErrUnauthorizedApproval
	}

	now := s.now().UTC()
	status := attendance.ApprovalRejected
	rec.ApprovalStatus = &status
	rec.ApprovedBy = &userID
	rec.ApprovalDate = &now
	rec.ApprovalNotes = &req.Reason

	if err := s.AttendanceRepository.Update(ctx, rec); err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to reject attendance: %w", err)
	}

	return mapAttendanceToResponse(rec), nil
}

// guardPending enforces the exactly-once approval transition.
func (s *AttendanceServiceImpl) guardPending(rec attendance.Attendance) error {
	if rec.ApprovalStatus == nil {
		return attendance.ErrApprovalNotPending
	}
	switch *rec.ApprovalStatus {
	case attendance.ApprovalApproved:
		return attendance.ErrAlreadyApproved
	case attendance.ApprovalRejected:
		return attendance.ErrAlreadyRejected
	}
	return nil
}

// GetAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetAttendance(ctx context.Context, id string) (attendance.AttendanceResponse, error) {
	companyID, _, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	rec, err := s.AttendanceRepository.GetByID(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	return mapAttendanceToResponse(rec), nil
}

// ListAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	companyID, _, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	attendances, total, err := s.AttendanceRepository.List(ctx, filter, companyID)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendances: %w", err)
	}

	return buildListResponse(attendances, total, filter.Page, filter.Limit), nil
}

// GetMyAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetMyAttendance(ctx context.Context, filter attendance.MyAttendanceFilter) (attendance.ListAttendanceResponse, error) {
	companyID, employeeID, _, err := claimsFromContext(ctx)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	if employeeID == "" {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("employee_id claim is missing or invalid")
	}

	attendances, total, err := s.AttendanceRepository.GetMyAttendance(ctx, employeeID, filter, companyID)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to get my attendance: %w", err)
	}

	return buildListResponse(attendances, total, filter.Page, filter.Limit), nil
}

func buildListResponse(attendances []attendance.Attendance, total int64, page, limit int) attendance.ListAttendanceResponse {
	responses := make([]attendance.AttendanceResponse, 0, len(attendances))
	for _, att := range attendances {
		responses = append(responses, mapAttendanceToResponse(att))
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	showing := fmt.Sprintf("%d-%d of %d", (page-1)*limit+1, min(page*limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		Showing:     showing,
		Attendances: responses,
	}
}

// evaluateLocation attaches geofence evidence to raw coordinates. Accuracy
// never enters the containment decision.
func evaluateLocation(latitude, longitude float64, accuracy *float64, fence *policy.GeofenceConfig) *attendance.ClockLocation {
	loc := &attendance.ClockLocation{
		Latitude:       latitude,
		Longitude:      longitude,
		AccuracyMeters: accuracy,
	}

	if fence != nil {
		point := geo.Point{Latitude: latitude, Longitude: longitude}
		distance := geo.DistanceMeters(point, fence.Fence().Center)
		within := fence.Fence().Contains(point)
		loc.DistanceFromOfficeMeters = &distance
		loc.IsWithinGeofence = &within
	}

	return loc
}

// mapAttendanceToResponse converts an Attendance entity to AttendanceResponse
func mapAttendanceToResponse(att attendance.Attendance) attendance.AttendanceResponse {
	var employeeName string
	if att.EmployeeName != nil {
		employeeName = *att.EmployeeName
	}

	breaks := make([]attendance.BreakResponse, 0, len(att.Breaks))
	for _, b := range att.Breaks {
		breaks = append(breaks, attendance.BreakResponse{
			ID:                       b.ID,
			Type:                     string(b.Type),
			StartTime:                b.StartTime.Format("2006-01-02 15:04:05"),
			EndTime:                  timePtrToString(b.EndTime),
			DurationMinutes:          b.DurationMinutes,
			ScheduledDurationMinutes: b.ScheduledDurationMinutes,
			IsPaid:                   b.IsPaid,
		})
	}

	penalties := make([]attendance.PenaltyResponse, 0, len(att.Penalties))
	var penaltyTotal *decimal.Decimal
	if len(att.Penalties) > 0 {
		total := decimal.Zero
		for _, p := range att.Penalties {
			penalties = append(penalties, attendance.PenaltyResponse{
				PolicyID:    p.PolicyID,
				Type:        string(p.Type),
				Amount:      p.Amount,
				Description: p.Description,
			})
			total = total.Add(p.Amount)
		}
		penaltyTotal = &total
	}

	var approvalStatus *string
	if att.ApprovalStatus != nil {
		v := string(*att.ApprovalStatus)
		approvalStatus = &v
	}

	return attendance.AttendanceResponse{
		ID:                att.ID,
		EmployeeID:        att.EmployeeID,
		EmployeeName:      employeeName,
		EmployeePosition:  att.EmployeePosition,
		Date:              att.Date.Format("2006-01-02"),
		Status:            string(att.Status),
		ClockInTime:       timePtrToString(att.ClockIn),
		ClockOutTime:      timePtrToString(att.ClockOut),
		ScheduledClockIn:  att.ScheduledClockIn,
		ScheduledClockOut: att.ScheduledClockOut,
		IsLate:            att.IsLate,
		LateMinutes:       att.LateMinutes,
		LateReason:        att.LateReason,
		IsEarlyLeave:      att.IsEarlyLeave,
		EarlyLeaveMinutes: att.EarlyLeaveMinutes,
		EarlyLeaveReason:  att.EarlyLeaveReason,
		Breaks:            breaks,
		TotalBreakMinutes: att.TotalBreakMinutes,
		UnpaidBreakMins:   att.UnpaidBreakMinutes,
		ClockInLocation:   att.ClockInLocation,
		ClockOutLocation:  att.ClockOutLocation,
		Penalties:         penalties,
		PenaltyTotal:      penaltyTotal,
		RequiresApproval:  att.RequiresApproval,
		ApprovalStatus:    approvalStatus,
		ApprovedBy:        att.ApprovedBy,
		ApprovalDate:      timePtrToString(att.ApprovalDate),
		ApprovalNotes:     att.ApprovalNotes,
		WorkDurationHours: att.WorkDurationHours,
		IsRemoteWork:      att.IsRemoteWork,
		IsManualEntry:     att.IsManualEntry,
		IsMissedClockOut:  att.IsMissedClockOut,
		IsCorrected:       att.IsCorrected,
		HasUnclosedBreak:  att.HasUnclosedBreak,
		CreatedAt:         att.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:         att.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
