package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Attendance AttendanceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// Pool bounds; sized for a single evaluation-engine instance.
	MaxConns int32
	MinConns int32
}

// JWTConfig holds the verification key for tokens issued by the identity service.
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
}

// AttendanceConfig holds tenant-level defaults for the evaluation engine.
type AttendanceConfig struct {
	// Fallback schedule window used when a work schedule has no entry
	// for the weekday of the clock event.
	DefaultClockIn  string
	DefaultClockOut string
	// IANA timezone the tenant's work days are anchored to.
	Timezone string
	// Lateness/earliness minutes tolerated before a penalty forces the
	// record into the approval queue. Zero means any penalty does.
	AutoApproveThresholdMinutes int
}

func Load() (*Config, error) {
	// Missing .env is fine in deployed environments, env vars win either way
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "worklens-attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Attendance engine configuration
	threshold, err := strconv.Atoi(getEnv("ATTENDANCE_AUTO_APPROVE_THRESHOLD_MINUTES", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTENDANCE_AUTO_APPROVE_THRESHOLD_MINUTES: %w", err)
	}

	config.Attendance = AttendanceConfig{
		DefaultClockIn:              getEnv("ATTENDANCE_DEFAULT_CLOCK_IN", "09:00"),
		DefaultClockOut:             getEnv("ATTENDANCE_DEFAULT_CLOCK_OUT", "18:00"),
		Timezone:                    getEnv("ATTENDANCE_TIMEZONE", "Asia/Bangkok"),
		AutoApproveThresholdMinutes: threshold,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}

	if c.Database.MinConns < 1 || c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS must be >= DB_MIN_CONNS >= 1")
	}

	for _, hhmm := range []string{c.Attendance.DefaultClockIn, c.Attendance.DefaultClockOut} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("invalid attendance default window %q: %w", hhmm, err)
		}
	}

	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		return fmt.Errorf("invalid ATTENDANCE_TIMEZONE: %w", err)
	}

	if c.Attendance.AutoApproveThresholdMinutes < 0 {
		return fmt.Errorf("ATTENDANCE_AUTO_APPROVE_THRESHOLD_MINUTES must not be negative")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
