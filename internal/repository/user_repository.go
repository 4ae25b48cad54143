package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, license_plate, username, password_hash, role, push_token, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, license_plate, username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.ID,
		user.LicensePlate,
		user.Username,
		user.PasswordHash,
		user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return apperror.AlreadyExists("license plate already registered")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByPlate retrieves a user by normalized license plate
func (r *UserRepository) GetByPlate(ctx context.Context, plate string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE license_plate = $1`
	return r.getOne(ctx, query, plate)
}

// PushToken returns the stored push token for a plate, or "" when the user
// has none.
func (r *UserRepository) PushToken(ctx context.Context, plate string) (string, error) {
	user, err := r.GetByPlate(ctx, plate)
	if err != nil {
		return "", err
	}
	if user.PushToken == nil {
		return "", nil
	}
	return *user.PushToken, nil
}

// SearchByPlate returns up to limit users whose plate contains q. q must
// already be normalized.
func (r *UserRepository) SearchByPlate(ctx context.Context, q string, limit int) ([]models.PlateMatch, error) {
	query := `
		SELECT license_plate, username
		FROM users
		WHERE license_plate ILIKE $1
		ORDER BY license_plate ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, "%"+q+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	matches := []models.PlateMatch{}
	for rows.Next() {
		var m models.PlateMatch
		if err := rows.Scan(&m.Plate, &m.Owner); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return matches, nil
}

// UpdatePushToken stores the device token used for push notifications
func (r *UserRepository) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE users SET push_token = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return apperror.NotFound("user not found")
	}

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var pushToken sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.LicensePlate,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&pushToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if pushToken.Valid {
		user.PushToken = &pushToken.String
	}
	return user, nil
}
