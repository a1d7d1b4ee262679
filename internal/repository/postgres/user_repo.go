package postgres

import (
	"context"
	"database/sql"

	"eventbooking/internal/domain"
)

type userRepository struct {
	DB *sql.DB
}

// NewUserRepository creates a read-only UserRepository. Users are provisioned outside the engine.
func NewUserRepository(db *sql.DB) domain.UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, full_name, secret_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	u := &domain.User{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.SecretHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isNoRow(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}
