package employee

import "time"

// Employee is the snapshot of the employee master data this service reads.
// Name and position are copied onto attendance records at write time; later
// renames intentionally do not rewrite history.
type Employee struct {
	ID             string
	CompanyID      string
	Name           string
	Position       *string
	DepartmentID   *string
	EmploymentType *string // e.g. "full-time", "contract"
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
