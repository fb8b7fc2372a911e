package attendance

import "context"

// AttendanceService is the attendance evaluation engine surface.
type AttendanceService interface {
	ClockIn(ctx context.Context, req ClockInRequest) (AttendanceResponse, error)
	ClockOut(ctx context.Context, req ClockOutRequest) (AttendanceResponse, error)
	StartBreak(ctx context.Context, req StartBreakRequest) (AttendanceResponse, error)
	EndBreak(ctx context.Context) (AttendanceResponse, error)
	CreateManualEntry(ctx context.Context, req ManualEntryRequest) (AttendanceResponse, error)
	RunDailySweep(ctx context.Context, req DailySweepRequest) (DailySweepResponse, error)
	CorrectAttendance(ctx context.Context, req CorrectAttendanceRequest) (AttendanceResponse, error)
	ApproveAttendance(ctx context.Context, req ApproveAttendanceRequest) (AttendanceResponse, error)
	RejectAttendance(ctx context.Context, req RejectAttendanceRequest) (AttendanceResponse, error)
	GetAttendance(ctx context.Context, id string) (AttendanceResponse, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)
	GetMyAttendance(ctx context.Context, filter MyAttendanceFilter) (ListAttendanceResponse, error)
}
