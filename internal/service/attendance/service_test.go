package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/employee"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/policy"
)

// ===== FAKES =====

type fakeAttendanceRepo struct {
	records          map[string]attendance.Attendance // by ID
	nextID           int
	priorOccurrences int
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[string]attendance.Attendance)}
}

func (r *fakeAttendanceRepo) Create(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	for _, existing := range r.records {
		if existing.EmployeeID == att.EmployeeID && existing.CompanyID == att.CompanyID &&
			existing.Date.Equal(att.Date) {
			// Same outcome as the unique index firing
			return attendance.Attendance{}, attendance.ErrDuplicateClockIn
		}
	}
	r.nextID++
	att.ID = fmt.Sprintf("att-%d", r.nextID)
	att.CreatedAt = time.Now()
	att.UpdatedAt = att.CreatedAt
	r.records[att.ID] = att
	return att, nil
}

func (r *fakeAttendanceRepo) GetByID(_ context.Context, id string, companyID string) (attendance.Attendance, error) {
	att, ok := r.records[id]
	if !ok || att.CompanyID != companyID {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	return att, nil
}

func (r *fakeAttendanceRepo) GetByEmployeeAndDate(_ context.Context, employeeID string, date time.Time, companyID string) (*attendance.Attendance, error) {
	for _, att := range r.records {
		if att.EmployeeID == employeeID && att.CompanyID == companyID && att.Date.Equal(date) {
			copied := att
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAttendanceRepo) Update(_ context.Context, att attendance.Attendance) error {
	if _, ok := r.records[att.ID]; !ok {
		return attendance.ErrAttendanceNotFound
	}
	att.UpdatedAt = time.Now()
	r.records[att.ID] = att
	return nil
}

func (r *fakeAttendanceRepo) List(_ context.Context, _ attendance.AttendanceFilter, companyID string) ([]attendance.Attendance, int64, error) {
	var result []attendance.Attendance
	for _, att := range r.records {
		if att.CompanyID == companyID {
			result = append(result, att)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeAttendanceRepo) GetMyAttendance(_ context.Context, employeeID string, _ attendance.MyAttendanceFilter, companyID string) ([]attendance.Attendance, int64, error) {
	var result []attendance.Attendance
	for _, att := range r.records {
		if att.CompanyID == companyID && att.EmployeeID == employeeID {
			result = append(result, att)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeAttendanceRepo) ListOpenForDate(_ context.Context, date time.Time, companyID string) ([]attendance.Attendance, error) {
	var result []attendance.Attendance
	for _, att := range r.records {
		if att.CompanyID == companyID && att.Date.Equal(date) && att.Status == attendance.StatusClockedIn {
			result = append(result, att)
		}
	}
	return result, nil
}

// CountPriorOccurrences mirrors the SQL: excused violations and the
// excluded record do not count; priorOccurrences seeds history that is not
// in the map.
func (r *fakeAttendanceRepo) CountPriorOccurrences(_ context.Context, employeeID string, violation policy.PenaltyType, periodStart, periodEnd time.Time, excludeID string, companyID string) (int, error) {
	count := r.priorOccurrences
	for id, att := range r.records {
		if id == excludeID || att.EmployeeID != employeeID || att.CompanyID != companyID {
			continue
		}
		if att.Date.Before(periodStart) || !att.Date.Before(periodEnd) {
			continue
		}
		switch violation {
		case policy.PenaltyLate:
			if att.IsLate && !att.IsExcusedLate {
				count++
			}
		case policy.PenaltyEarlyLeave:
			if att.IsEarlyLeave && !att.IsExcusedEarlyLeave {
				count++
			}
		case policy.PenaltyMissedClockOut:
			if att.IsMissedClockOut {
				count++
			}
		}
	}
	return count, nil
}

type fakeEmployeeRepo struct {
	emp       employee.Employee
	absentees []employee.Employee
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string, companyID string) (employee.Employee, error) {
	if id != r.emp.ID || companyID != r.emp.CompanyID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return r.emp, nil
}

func (r *fakeEmployeeRepo) ListWithoutAttendance(_ context.Context, _ time.Time, companyID string) ([]employee.Employee, error) {
	var result []employee.Employee
	for _, emp := range r.absentees {
		if emp.CompanyID == companyID {
			result = append(result, emp)
		}
	}
	return result, nil
}

type fakeScheduleRepo struct {
	schedule *policy.WorkSchedulePolicy
	err      error
}

func (r *fakeScheduleRepo) GetEmployeeSchedule(_ context.Context, _ string, _ time.Time, _ string) (*policy.WorkSchedulePolicy, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.schedule, nil
}

type fakeGeofenceRepo struct{ fence *policy.GeofenceConfig }

func (r *fakeGeofenceRepo) GetActiveGeofence(_ context.Context, _ string, _, _ *string) (*policy.GeofenceConfig, error) {
	return r.fence, nil
}

type fakePenaltyRepo struct{ policies []policy.PenaltyPolicy }

func (r *fakePenaltyRepo) GetPenaltyPolicies(_ context.Context, _ string, _ time.Time) ([]policy.PenaltyPolicy, error) {
	return r.policies, nil
}

type fakeAuthorizer struct{ authorized bool }

func (a *fakeAuthorizer) IsAuthorizedApprover(_ context.Context, _ string, _ attendance.Attendance) (bool, error) {
	return a.authorized, nil
}

// ===== HARNESS =====

const (
	testCompanyID  = "co-1"
	testEmployeeID = "emp-1"
	testUserID     = "user-1"
	testHRUserID   = "hr-1"
)

type serviceHarness struct {
	svc        *AttendanceServiceImpl
	repo       *fakeAttendanceRepo
	employees  *fakeEmployeeRepo
	schedule   *fakeScheduleRepo
	geofence   *fakeGeofenceRepo
	penalties  *fakePenaltyRepo
	authorizer *fakeAuthorizer
	location   *time.Location
}

func newHarness(t *testing.T) *serviceHarness {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)

	repo := newFakeAttendanceRepo()
	schedule := &fakeScheduleRepo{
		schedule: &policy.WorkSchedulePolicy{
			ID:        "sched-1",
			CompanyID: testCompanyID,
			Days: map[time.Weekday]policy.ScheduleDay{
				time.Monday:    {ClockIn: "09:00", ClockOut: "18:00", BreakDurationMinutes: 60},
				time.Tuesday:   {ClockIn: "09:00", ClockOut: "18:00", BreakDurationMinutes: 60},
				time.Wednesday: {ClockIn: "09:00", ClockOut: "18:00", BreakDurationMinutes: 60},
				time.Thursday:  {ClockIn: "09:00", ClockOut: "18:00", BreakDurationMinutes: 60},
				time.Friday:    {ClockIn: "09:00", ClockOut: "18:00", BreakDurationMinutes: 60},
			},
		},
	}
	geofence := &fakeGeofenceRepo{}
	penalties := &fakePenaltyRepo{}
	authorizer := &fakeAuthorizer{authorized: true}

	position := "Engineer"
	employeeRepo := &fakeEmployeeRepo{emp: employee.Employee{
		ID:        testEmployeeID,
		CompanyID: testCompanyID,
		Name:      "Siriporn K.",
		Position:  &position,
	}}

	svc := NewAttendanceService(
		nil,
		repo,
		employeeRepo,
		schedule,
		geofence,
		penalties,
		authorizer,
		NewTimeCalculator("09:00", "18:00"),
		NewPenaltyEvaluator(repo),
		loc,
		0,
	).(*AttendanceServiceImpl)

	return &serviceHarness{
		svc:        svc,
		repo:       repo,
		employees:  employeeRepo,
		schedule:   schedule,
		geofence:   geofence,
		penalties:  penalties,
		authorizer: authorizer,
		location:   loc,
	}
}

func (h *serviceHarness) setNow(t time.Time) {
	h.svc.now = func() time.Time { return t }
}

// localTime is a Monday (2025-03-10) at the given clock in the tenant zone.
func (h *serviceHarness) localTime(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, h.location)
}

func authedContext(t *testing.T, companyID, employeeID, userID string) context.Context {
	ja := jwtauth.New("HS256", []byte("test-secret-key"), nil)
	token, _, err := ja.Encode(map[string]interface{}{
		"company_id":  companyID,
		"employee_id": employeeID,
		"user_id":     userID,
		"type":        "access",
	})
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), token, nil)
}

func employeeCtx(t *testing.T) context.Context {
	return authedContext(t, testCompanyID, testEmployeeID, testUserID)
}

func hrCtx(t *testing.T) context.Context {
	return authedContext(t, testCompanyID, "", testHRUserID)
}

// ===== CLOCK-IN =====

func TestClockIn_OnTime(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 55))

	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})

	require.NoError(t, err)
	assert.Equal(t, string(attendance.StatusClockedIn), resp.Status)
	assert.False(t, resp.IsLate)
	assert.Equal(t, 0, resp.LateMinutes)
	assert.Equal(t, "09:00", resp.ScheduledClockIn)
	assert.Equal(t, "18:00", resp.ScheduledClockOut)
	assert.False(t, resp.RequiresApproval)
	assert.Nil(t, resp.ClockOutTime)
	assert.Equal(t, "Siriporn K.", resp.EmployeeName)
}

func TestClockIn_LateWithFixedPenalty(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(9, 20))
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-late",
		Name:       "late-fixed",
		Type:       policy.PenaltyLate,
		Amount:     decimal.NewFromInt(100),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})

	require.NoError(t, err)
	assert.True(t, resp.IsLate)
	assert.Equal(t, 20, resp.LateMinutes)
	require.Len(t, resp.Penalties, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(resp.Penalties[0].Amount))
	assert.True(t, resp.RequiresApproval)
	require.NotNil(t, resp.ApprovalStatus)
	assert.Equal(t, string(attendance.ApprovalPending), *resp.ApprovalStatus)
}

func TestClockIn_OutsideEnforcedGeofence(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 50))
	h.geofence.fence = &policy.GeofenceConfig{
		ID:               "fence-1",
		CompanyID:        testCompanyID,
		Latitude:         13.736,
		Longitude:        100.523,
		RadiusMeters:     500,
		EnforceOnClockIn: true,
	}

	// Roughly 15 km north of the office
	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.871, Longitude: 100.523})

	require.NoError(t, err)
	require.NotNil(t, resp.ClockInLocation)
	require.NotNil(t, resp.ClockInLocation.IsWithinGeofence)
	assert.False(t, *resp.ClockInLocation.IsWithinGeofence)
	require.NotNil(t, resp.ClockInLocation.DistanceFromOfficeMeters)
	assert.InDelta(t, 15000, *resp.ClockInLocation.DistanceFromOfficeMeters, 500)
	assert.True(t, resp.RequiresApproval)
}

func TestClockIn_RemoteWorkOutsideFence(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 50))
	h.geofence.fence = &policy.GeofenceConfig{
		ID:               "fence-1",
		Latitude:         13.736,
		Longitude:        100.523,
		RadiusMeters:     500,
		EnforceOnClockIn: true,
	}

	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{
		Latitude:     13.871,
		Longitude:    100.523,
		IsRemoteWork: true,
	})

	require.NoError(t, err)
	assert.False(t, resp.RequiresApproval)
	assert.True(t, resp.IsRemoteWork)
}

func TestClockIn_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 55))

	_, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(10, 0))
	_, err = h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})

	assert.ErrorIs(t, err, attendance.ErrDuplicateClockIn)
	assert.Len(t, h.repo.records, 1)
}

func TestClockIn_NoScheduleFails(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 55))
	h.schedule.schedule = nil
	h.schedule.err = policy.ErrNoScheduleFound

	_, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})

	assert.ErrorIs(t, err, policy.ErrNoScheduleFound)
}

func TestClockIn_InvalidLatitude(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 91, Longitude: 0})

	assert.Error(t, err)
}

// ===== CLOCK-OUT =====

func TestClockOut_WithLunchBreak(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	h.setNow(h.localTime(13, 0))
	_, err = h.svc.EndBreak(ctx)
	require.NoError(t, err)

	// Gross 9h05m minus the 60 minute unpaid lunch
	h.setNow(h.localTime(18, 5))
	resp, err := h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})

	require.NoError(t, err)
	assert.Equal(t, string(attendance.StatusClockedOut), resp.Status)
	assert.Equal(t, 60, resp.TotalBreakMinutes)
	assert.Equal(t, 60, resp.UnpaidBreakMins)
	require.NotNil(t, resp.WorkDurationHours)
	assert.InDelta(t, 8.08, *resp.WorkDurationHours, 0.001)
	assert.False(t, resp.IsEarlyLeave)
}

func TestClockOut_WithoutClockIn(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(18, 0))

	_, err := h.svc.ClockOut(employeeCtx(t), attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})

	assert.ErrorIs(t, err, attendance.ErrNoActiveClockIn)
}

func TestClockOut_Twice(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(18, 0))
	_, err = h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(18, 30))
	_, err = h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})

	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedOut)
}

func TestClockOut_EarlyLeavePenaltyAppended(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-early",
		Name:       "early-fixed",
		Type:       policy.PenaltyEarlyLeave,
		Amount:     decimal.NewFromInt(50),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(17, 0))
	resp, err := h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})

	require.NoError(t, err)
	assert.True(t, resp.IsEarlyLeave)
	assert.Equal(t, 60, resp.EarlyLeaveMinutes)
	require.Len(t, resp.Penalties, 1)
	assert.Equal(t, string(policy.PenaltyEarlyLeave), resp.Penalties[0].Type)
	assert.True(t, resp.RequiresApproval)
}

func TestClockOut_OpenBreakIsFlaggedNotClosed(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	h.setNow(h.localTime(18, 0))
	resp, err := h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})

	require.NoError(t, err)
	assert.True(t, resp.HasUnclosedBreak)
	require.Len(t, resp.Breaks, 1)
	assert.Nil(t, resp.Breaks[0].EndTime)
	// Open break contributes nothing to the aggregates
	assert.Equal(t, 0, resp.TotalBreakMinutes)
}

func TestClockOut_OutsideFenceEnforcedOnClockOut(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)
	h.geofence.fence = &policy.GeofenceConfig{
		ID:                "fence-1",
		CompanyID:         testCompanyID,
		Latitude:          13.736,
		Longitude:         100.523,
		RadiusMeters:      500,
		EnforceOnClockOut: true,
	}

	h.setNow(h.localTime(9, 0))
	resp, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)
	require.False(t, resp.RequiresApproval)

	// On time but 15 km away: the clock-out fence queues the record
	h.setNow(h.localTime(18, 0))
	resp, err = h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.871, Longitude: 100.523})

	require.NoError(t, err)
	require.NotNil(t, resp.ClockOutLocation)
	require.NotNil(t, resp.ClockOutLocation.IsWithinGeofence)
	assert.False(t, *resp.ClockOutLocation.IsWithinGeofence)
	assert.True(t, resp.RequiresApproval)
	require.NotNil(t, resp.ApprovalStatus)
	assert.Equal(t, string(attendance.ApprovalPending), *resp.ApprovalStatus)
}

// ===== BREAKS =====

func TestStartBreak_OverlappingRejected(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "rest"})

	assert.ErrorIs(t, err, attendance.ErrOpenBreakExists)
}

func TestStartBreak_WithoutClockIn(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(12, 0))

	_, err := h.svc.StartBreak(employeeCtx(t), attendance.StartBreakRequest{Type: "lunch"})

	assert.ErrorIs(t, err, attendance.ErrNoActiveClockIn)
}

func TestEndBreak_ClosesAndRecomputesTotals(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 45))
	resp, err := h.svc.EndBreak(ctx)

	require.NoError(t, err)
	require.Len(t, resp.Breaks, 1)
	require.NotNil(t, resp.Breaks[0].DurationMinutes)
	assert.Equal(t, 45, *resp.Breaks[0].DurationMinutes)
	assert.Equal(t, 45, resp.TotalBreakMinutes)
	assert.Equal(t, 45, resp.UnpaidBreakMins)
}

func TestEndBreak_AlreadyClosed(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	h.setNow(h.localTime(13, 0))
	_, err = h.svc.EndBreak(ctx)
	require.NoError(t, err)

	_, err = h.svc.EndBreak(ctx)

	assert.ErrorIs(t, err, attendance.ErrBreakAlreadyClosed)
}

func TestEndBreak_NoneStarted(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	_, err = h.svc.EndBreak(ctx)

	assert.ErrorIs(t, err, attendance.ErrNoOpenBreak)
}

// ===== MANUAL ENTRY =====

func TestManualEntry_WithoutClockOutStaysClockedIn(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(15, 0))

	resp, err := h.svc.CreateManualEntry(hrCtx(t), attendance.ManualEntryRequest{
		EmployeeID:  testEmployeeID,
		Date:        "2025-03-10",
		ClockInTime: "2025-03-10T09:30:00+07:00",
		Reason:      "forgot phone at home",
	})

	require.NoError(t, err)
	assert.Equal(t, string(attendance.StatusClockedIn), resp.Status)
	assert.True(t, resp.IsManualEntry)
	assert.False(t, resp.RequiresApproval)
	require.NotNil(t, resp.ApprovalStatus)
	assert.Equal(t, string(attendance.ApprovalApproved), *resp.ApprovalStatus)
	require.NotNil(t, resp.ApprovedBy)
	assert.Equal(t, testHRUserID, *resp.ApprovedBy)
	// Lateness facts are recorded even though the penalty is suppressed
	assert.True(t, resp.IsLate)
	assert.Equal(t, 30, resp.LateMinutes)
	assert.Empty(t, resp.Penalties)
}

func TestManualEntry_FullDay(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(19, 0))

	resp, err := h.svc.CreateManualEntry(hrCtx(t), attendance.ManualEntryRequest{
		EmployeeID:   testEmployeeID,
		Date:         "2025-03-10",
		ClockInTime:  "2025-03-10T09:00:00+07:00",
		ClockOutTime: strPtr("2025-03-10T18:00:00+07:00"),
		Reason:       "badge reader outage",
	})

	require.NoError(t, err)
	assert.Equal(t, string(attendance.StatusClockedOut), resp.Status)
	require.NotNil(t, resp.WorkDurationHours)
	assert.InDelta(t, 9.0, *resp.WorkDurationHours, 0.001)
}

func TestManualEntry_InvalidTimeWindow(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(19, 0))

	_, err := h.svc.CreateManualEntry(hrCtx(t), attendance.ManualEntryRequest{
		EmployeeID:   testEmployeeID,
		Date:         "2025-03-10",
		ClockInTime:  "2025-03-10T18:00:00+07:00",
		ClockOutTime: strPtr("2025-03-10T09:00:00+07:00"),
		Reason:       "typo check",
	})

	assert.ErrorIs(t, err, attendance.ErrInvalidTimeWindow)
	assert.Empty(t, h.repo.records)
}

func TestManualEntry_DuplicateDay(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	_, err = h.svc.CreateManualEntry(hrCtx(t), attendance.ManualEntryRequest{
		EmployeeID:  testEmployeeID,
		Date:        "2025-03-10",
		ClockInTime: "2025-03-10T09:30:00+07:00",
		Reason:      "duplicate attempt",
	})

	assert.ErrorIs(t, err, attendance.ErrDuplicateClockIn)
}

func TestManualEntry_UnsuppressedPenalties(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(19, 0))
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-late",
		Name:       "late-fixed",
		Type:       policy.PenaltyLate,
		Amount:     decimal.NewFromInt(100),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	resp, err := h.svc.CreateManualEntry(hrCtx(t), attendance.ManualEntryRequest{
		EmployeeID:        testEmployeeID,
		Date:              "2025-03-10",
		ClockInTime:       "2025-03-10T09:30:00+07:00",
		Reason:            "late arrival, policy applies",
		SuppressPenalties: boolPtr(false),
	})

	require.NoError(t, err)
	require.Len(t, resp.Penalties, 1)
	assert.True(t, resp.RequiresApproval)
}

// ===== APPROVAL =====

func clockInLate(t *testing.T, h *serviceHarness) string {
	t.Helper()
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-late",
		Name:       "late-fixed",
		Type:       policy.PenaltyLate,
		Amount:     decimal.NewFromInt(100),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	h.setNow(h.localTime(9, 20))
	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)
	require.True(t, resp.RequiresApproval)
	return resp.ID
}

func TestApprove_PendingRecord(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)

	resp, err := h.svc.ApproveAttendance(authedContext(t, testCompanyID, "", "manager-1"), attendance.ApproveAttendanceRequest{ID: id})

	require.NoError(t, err)
	require.NotNil(t, resp.ApprovalStatus)
	assert.Equal(t, string(attendance.ApprovalApproved), *resp.ApprovalStatus)
	assert.False(t, resp.RequiresApproval)
	require.NotNil(t, resp.ApprovedBy)
	assert.Equal(t, "manager-1", *resp.ApprovedBy)
}

func TestApprove_TwiceIsRejected(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)
	ctx := authedContext(t, testCompanyID, "", "manager-1")

	_, err := h.svc.ApproveAttendance(ctx, attendance.ApproveAttendanceRequest{ID: id})
	require.NoError(t, err)

	_, err = h.svc.ApproveAttendance(ctx, attendance.ApproveAttendanceRequest{ID: id})

	assert.ErrorIs(t, err, attendance.ErrAlreadyApproved)

	// State unchanged by the failed second approval
	rec, getErr := h.repo.GetByID(context.Background(), id, testCompanyID)
	require.NoError(t, getErr)
	assert.Equal(t, attendance.ApprovalApproved, *rec.ApprovalStatus)
	assert.Equal(t, "manager-1", *rec.ApprovedBy)
}

func TestReject_KeepsRecord(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)

	resp, err := h.svc.RejectAttendance(authedContext(t, testCompanyID, "", "manager-1"), attendance.RejectAttendanceRequest{
		ID:     id,
		Reason: "no justification given",
	})

	require.NoError(t, err)
	require.NotNil(t, resp.ApprovalStatus)
	assert.Equal(t, string(attendance.ApprovalRejected), *resp.ApprovalStatus)
	assert.Len(t, h.repo.records, 1)
}

func TestReject_AfterRejectIsRejected(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)
	ctx := authedContext(t, testCompanyID, "", "manager-1")

	_, err := h.svc.RejectAttendance(ctx, attendance.RejectAttendanceRequest{ID: id, Reason: "first"})
	require.NoError(t, err)

	_, err = h.svc.RejectAttendance(ctx, attendance.RejectAttendanceRequest{ID: id, Reason: "second"})

	assert.ErrorIs(t, err, attendance.ErrAlreadyRejected)
}

func TestApprove_NotPending(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(8, 55))

	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)
	require.False(t, resp.RequiresApproval)

	_, err = h.svc.ApproveAttendance(authedContext(t, testCompanyID, "", "manager-1"), attendance.ApproveAttendanceRequest{ID: resp.ID})

	assert.ErrorIs(t, err, attendance.ErrApprovalNotPending)
}

func TestApprove_Unauthorized(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)
	h.authorizer.authorized = false

	_, err := h.svc.ApproveAttendance(authedContext(t, testCompanyID, "", "rando-1"), attendance.ApproveAttendanceRequest{ID: id})

	assert.ErrorIs(t, err, attendance.ErrUnauthorizedApproval)
}

// ===== CORRECTION =====

func TestCorrect_RecomputesAndReissues(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)

	h.setNow(h.localTime(18, 0))
	// Correct the clock-in back to on time: lateness and penalty must go away
	resp, err := h.svc.CorrectAttendance(hrCtx(t), attendance.CorrectAttendanceRequest{
		ID:           id,
		ClockInTime:  strPtr("2025-03-10T08:58:00+07:00"),
		ClockOutTime: strPtr("2025-03-10T18:00:00+07:00"),
		Reason:       "employee was on site, badge failed",
	})

	require.NoError(t, err)
	assert.True(t, resp.IsCorrected)
	assert.False(t, resp.IsLate)
	assert.Equal(t, 0, resp.LateMinutes)
	assert.Empty(t, resp.Penalties)
	assert.False(t, resp.RequiresApproval)
	assert.Equal(t, string(attendance.StatusClockedOut), resp.Status)
}

func TestCorrect_InvalidWindow(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)

	_, err := h.svc.CorrectAttendance(hrCtx(t), attendance.CorrectAttendanceRequest{
		ID:           id,
		ClockOutTime: strPtr("2025-03-10T05:00:00+07:00"),
		Reason:       "bad correction",
	})

	assert.ErrorIs(t, err, attendance.ErrInvalidTimeWindow)
}

func progressiveLatePolicy() []policy.PenaltyPolicy {
	return []policy.PenaltyPolicy{{
		ID:          "pol-late-prog",
		Name:        "late-progressive",
		Type:        policy.PenaltyLate,
		Progressive: true,
		Tiers: []policy.PenaltyTier{
			{FromOccurrence: 1, Amount: decimal.NewFromInt(50)},
			{FromOccurrence: 2, Amount: decimal.NewFromInt(100)},
		},
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
}

func TestCorrect_StillLateChargesSameTier(t *testing.T) {
	h := newHarness(t)
	h.penalties.policies = progressiveLatePolicy()

	h.setNow(h.localTime(9, 20))
	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)
	require.Len(t, resp.Penalties, 1)
	assert.True(t, decimal.NewFromInt(50).Equal(resp.Penalties[0].Amount))

	// A correction that leaves the employee late reissues the penalty, but
	// the record must not count as its own prior occurrence: the first
	// offence of the month stays on the first tier.
	h.setNow(h.localTime(18, 0))
	corrected, err := h.svc.CorrectAttendance(hrCtx(t), attendance.CorrectAttendanceRequest{
		ID:          resp.ID,
		ClockInTime: strPtr("2025-03-10T09:10:00+07:00"),
		Reason:      "badge clock drift",
	})
	require.NoError(t, err)
	assert.True(t, corrected.IsLate)
	assert.Equal(t, 10, corrected.LateMinutes)
	require.Len(t, corrected.Penalties, 1)
	assert.True(t, decimal.NewFromInt(50).Equal(corrected.Penalties[0].Amount))

	// Genuine earlier offences still escalate: the next late day in the same
	// month lands on the second tier.
	h.setNow(time.Date(2025, 3, 11, 9, 20, 0, 0, h.location))
	next, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)
	require.Len(t, next.Penalties, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(next.Penalties[0].Amount))
}

func TestCorrect_LateSignOffFollowsLateness(t *testing.T) {
	h := newHarness(t)
	id := clockInLate(t, h)

	// Still late after the correction: the correcting HR user signs it off
	h.setNow(h.localTime(18, 0))
	_, err := h.svc.CorrectAttendance(hrCtx(t), attendance.CorrectAttendanceRequest{
		ID:          id,
		ClockInTime: strPtr("2025-03-10T09:10:00+07:00"),
		Reason:      "badge clock drift",
	})
	require.NoError(t, err)

	rec, err := h.repo.GetByID(context.Background(), id, testCompanyID)
	require.NoError(t, err)
	require.NotNil(t, rec.LateApprovedBy)
	assert.Equal(t, testHRUserID, *rec.LateApprovedBy)

	// Corrected back to on time: no lateness left to sign off
	_, err = h.svc.CorrectAttendance(hrCtx(t), attendance.CorrectAttendanceRequest{
		ID:          id,
		ClockInTime: strPtr("2025-03-10T08:58:00+07:00"),
		Reason:      "employee was on site, badge failed",
	})
	require.NoError(t, err)

	rec, err = h.repo.GetByID(context.Background(), id, testCompanyID)
	require.NoError(t, err)
	assert.Nil(t, rec.LateApprovedBy)
}

// ===== DAILY SWEEP =====

func TestDailySweep_FlagsMissedClockOut(t *testing.T) {
	h := newHarness(t)
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-missed",
		Name:       "missed-clock-out",
		Type:       policy.PenaltyMissedClockOut,
		Amount:     decimal.NewFromInt(75),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	h.setNow(h.localTime(9, 0))
	resp, err := h.svc.ClockIn(employeeCtx(t), attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	// The next morning, Monday was never closed
	h.setNow(time.Date(2025, 3, 11, 6, 0, 0, 0, h.location))
	result, err := h.svc.RunDailySweep(hrCtx(t), attendance.DailySweepRequest{Date: "2025-03-10"})

	require.NoError(t, err)
	assert.Equal(t, []string{resp.ID}, result.MissedClockOutIDs)
	assert.Empty(t, result.AbsentAttendanceIDs)

	rec, err := h.repo.GetByID(context.Background(), resp.ID, testCompanyID)
	require.NoError(t, err)
	assert.True(t, rec.IsMissedClockOut)
	// Flagged, never closed with a guessed clock-out
	assert.Equal(t, attendance.StatusClockedIn, rec.Status)
	assert.Nil(t, rec.ClockOut)
	require.Len(t, rec.Penalties, 1)
	assert.Equal(t, policy.PenaltyMissedClockOut, rec.Penalties[0].Type)
	assert.True(t, rec.RequiresApproval)
	require.NotNil(t, rec.ApprovalStatus)
	assert.Equal(t, attendance.ApprovalPending, *rec.ApprovalStatus)
}

func TestDailySweep_MarksScheduledEmployeesAbsent(t *testing.T) {
	h := newHarness(t)
	h.penalties.policies = []policy.PenaltyPolicy{{
		ID:         "pol-absence",
		Name:       "absence-fixed",
		Type:       policy.PenaltyAbsence,
		Amount:     decimal.NewFromInt(200),
		ActiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	h.employees.absentees = []employee.Employee{{
		ID:        "emp-2",
		CompanyID: testCompanyID,
		Name:      "Arthit P.",
	}}

	h.setNow(time.Date(2025, 3, 11, 6, 0, 0, 0, h.location))
	result, err := h.svc.RunDailySweep(hrCtx(t), attendance.DailySweepRequest{Date: "2025-03-10"})

	require.NoError(t, err)
	require.Len(t, result.AbsentAttendanceIDs, 1)

	rec, err := h.repo.GetByID(context.Background(), result.AbsentAttendanceIDs[0], testCompanyID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, rec.Status)
	assert.Equal(t, "emp-2", rec.EmployeeID)
	assert.Nil(t, rec.ClockIn)
	assert.Equal(t, "09:00", rec.ScheduledClockIn)
	assert.Equal(t, "18:00", rec.ScheduledClockOut)
	require.Len(t, rec.Penalties, 1)
	assert.Equal(t, policy.PenaltyAbsence, rec.Penalties[0].Type)
	assert.True(t, decimal.NewFromInt(200).Equal(rec.Penalties[0].Amount))

	// Running the same sweep again creates nothing new
	again, err := h.svc.RunDailySweep(hrCtx(t), attendance.DailySweepRequest{Date: "2025-03-10"})
	require.NoError(t, err)
	assert.Empty(t, again.AbsentAttendanceIDs)
	assert.Len(t, h.repo.records, 1)
}

func TestDailySweep_SkipsUnscheduledDay(t *testing.T) {
	h := newHarness(t)
	h.employees.absentees = []employee.Employee{{
		ID:        "emp-2",
		CompanyID: testCompanyID,
		Name:      "Arthit P.",
	}}

	// Saturday is not in the Monday-to-Friday schedule
	h.setNow(h.localTime(6, 0))
	result, err := h.svc.RunDailySweep(hrCtx(t), attendance.DailySweepRequest{Date: "2025-03-08"})

	require.NoError(t, err)
	assert.Empty(t, result.AbsentAttendanceIDs)
	assert.Empty(t, h.repo.records)
}

func TestDailySweep_RejectsUnfinishedDay(t *testing.T) {
	h := newHarness(t)
	h.setNow(h.localTime(23, 0))

	_, err := h.svc.RunDailySweep(hrCtx(t), attendance.DailySweepRequest{Date: "2025-03-10"})

	assert.ErrorIs(t, err, attendance.ErrInvalidTimeWindow)
}

// ===== ROUND-TRIP =====

func TestPersistedRecordReadsBackIdentical(t *testing.T) {
	h := newHarness(t)
	ctx := employeeCtx(t)

	h.setNow(h.localTime(9, 0))
	_, err := h.svc.ClockIn(ctx, attendance.ClockInRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	h.setNow(h.localTime(12, 0))
	_, err = h.svc.StartBreak(ctx, attendance.StartBreakRequest{Type: "lunch"})
	require.NoError(t, err)

	h.setNow(h.localTime(13, 0))
	_, err = h.svc.EndBreak(ctx)
	require.NoError(t, err)

	h.setNow(h.localTime(18, 5))
	written, err := h.svc.ClockOut(ctx, attendance.ClockOutRequest{Latitude: 13.736, Longitude: 100.523})
	require.NoError(t, err)

	// Reads return the stored facts, nothing is recomputed on the way out
	read, err := h.svc.GetAttendance(ctx, written.ID)
	require.NoError(t, err)
	assert.Equal(t, written.WorkDurationHours, read.WorkDurationHours)
	assert.Equal(t, written.TotalBreakMinutes, read.TotalBreakMinutes)
	assert.Equal(t, written.Penalties, read.Penalties)
}

func strPtr(s string) *string { return &s }
