package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrCourseAlreadyOwned = errors.New("course already owned")
)

const userColumns = `id, name, email, role, courses, created_at, updated_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, email, role, courses, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	courses := user.Courses
	if courses == nil {
		courses = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		courses,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GrantCourse appends courseID to the user's owned courses and returns the
// updated record. The append is a single conditional UPDATE, so two
// concurrent grants of the same course cannot both succeed.
//
// Returns ErrCourseAlreadyOwned if the user already owns the course and
// ErrUserNotFound if no such user exists.
func (r *Repository) GrantCourse(ctx context.Context, userID, courseID string) (*model.User, error) {
	query := `
		UPDATE users
		SET courses = array_append(courses, $2::text), updated_at = NOW()
		WHERE id = $1 AND NOT ($2::text = ANY(courses))
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, userID, courseID))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to grant course: %w", err)
	}

	// No row updated: either the user is missing or already owns it.
	var exists bool
	probe := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	if err := r.db.QueryRow(ctx, probe, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return nil, ErrCourseAlreadyOwned
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Courses,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.Courses == nil {
		user.Courses = []string{}
	}
	return &user, nil
}
