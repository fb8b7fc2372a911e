package employee

import (
	"context"
	"time"
)

// EmployeeRepository reads employee master data owned by the employee CRUD
// domain upstream of this service.
type EmployeeRepository interface {
	// GetByID retrieves an employee by ID with company isolation
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)

	// ListWithoutAttendance returns the company's employees with no
	// attendance record on the given work day. Feeds absence marking.
	ListWithoutAttendance(ctx context.Context, date time.Time, companyID string) ([]Employee, error)
}
