package user

import "context"

// UserRepository is the slice of the identity domain this service reads:
// actor role lookup backing approval authorization.
type UserRepository interface {
	// GetByID retrieves a user by ID with company isolation
	GetByID(ctx context.Context, id string, companyID string) (User, error)
}
