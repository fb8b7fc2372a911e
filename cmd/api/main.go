package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/worklens-hr/attendance-backend-go/internal/config"
	appHTTP "github.com/worklens-hr/attendance-backend-go/internal/handler/http"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/jwt"
	"github.com/worklens-hr/attendance-backend-go/internal/repository/postgresql"
	attendanceService "github.com/worklens-hr/attendance-backend-go/internal/service/attendance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		fmt.Println("Error loading tenant timezone:", err)
		return
	}

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	workScheduleRepo := postgresql.NewWorkScheduleRepository(db)
	geofenceRepo := postgresql.NewGeofenceRepository(db)
	penaltyPolicyRepo := postgresql.NewPenaltyPolicyRepository(db)
	userRepo := postgresql.NewUserRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)

	timeCalculator := attendanceService.NewTimeCalculator(
		cfg.Attendance.DefaultClockIn,
		cfg.Attendance.DefaultClockOut,
	)
	penaltyEvaluator := attendanceService.NewPenaltyEvaluator(attendanceRepo)
	approverAuthorizer := attendanceService.NewRoleApproverAuthorizer(userRepo)

	attendanceSvc := attendanceService.NewAttendanceService(
		db,
		attendanceRepo,
		employeeRepo,
		workScheduleRepo,
		geofenceRepo,
		penaltyPolicyRepo,
		approverAuthorizer,
		timeCalculator,
		penaltyEvaluator,
		location,
		cfg.Attendance.AutoApproveThresholdMinutes,
	)

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc)

	router := appHTTP.NewRouter(JWTService, attendanceHandler)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
