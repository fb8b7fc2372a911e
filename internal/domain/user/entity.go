package user

import "time"

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleHR       Role = "hr"       // Can create manual entries and corrections
	RoleManager  Role = "manager"  // Can approve attendance
	RoleEmployee Role = "employee" // Regular employee
)

type User struct {
	ID         string
	CompanyID  *string
	Email      string
	Role       Role
	EmployeeID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CanApprove checks if user can approve attendance records
func (u *User) CanApprove() bool {
	return u.Role == RoleManager || u.Role == RoleHR || u.Role == RoleOwner
}

// IsHR checks if user can create manual entries and corrections
func (u *User) IsHR() bool {
	return u.Role == RoleHR || u.Role == RoleOwner
}
