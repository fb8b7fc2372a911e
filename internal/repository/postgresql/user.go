package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/worklens-hr/attendance-backend-go/internal/domain/user"
	"github.com/worklens-hr/attendance-backend-go/internal/pkg/database"
)

type userRepository struct {
	db *database.DB
}

// GetByID implements user.UserRepository.
func (u *userRepository) GetByID(ctx context.Context, id string, companyID string) (user.User, error) {
	q := GetQuerier(ctx, u.db)

	query := `
		SELECT id, company_id, email, role, employee_id, created_at, updated_at
		FROM users
		WHERE id = $1 AND company_id = $2
	`

	var usr user.User
	err := q.QueryRow(ctx, query, id, companyID).Scan(
		&usr.ID, &usr.CompanyID, &usr.Email, &usr.Role, &usr.EmployeeID,
		&usr.CreatedAt, &usr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return usr, nil
}

func NewUserRepository(db *database.DB) user.UserRepository {
	return &userRepository{db: db}
}
