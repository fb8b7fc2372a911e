package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/worklens-hr/attendance-backend-go/internal/domain/attendance"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/user"
)

// RoleApproverAuthorizer answers approval authorization from the actor's
// role. Managers, HR and owners may approve; nobody signs off their own
// record.
type RoleApproverAuthorizer struct {
	users user.UserRepository
}

func NewRoleApproverAuthorizer(users user.UserRepository) attendance.ApproverAuthorizer {
	return &RoleApproverAuthorizer{users: users}
}

// IsAuthorizedApprover implements attendance.ApproverAuthorizer.
func (a *RoleApproverAuthorizer) IsAuthorizedApprover(ctx context.Context, actorUserID string, record attendance.Attendance) (bool, error) {
	usr, err := a.users.GetByID(ctx, actorUserID, record.CompanyID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get approver: %w", err)
	}

	if !usr.CanApprove() {
		return false, nil
	}

	// Sendiri tidak boleh approve record sendiri
	if usr.EmployeeID != nil && *usr.EmployeeID == record.EmployeeID {
		return false, nil
	}

	return true, nil
}
