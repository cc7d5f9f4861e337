package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for course repository operations.
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrCourseExists   = errors.New("course already exists")
)

// CreateCourse inserts a new course.
func (r *Repository) CreateCourse(ctx context.Context, course *model.Course) error {
	query := `
		INSERT INTO courses (id, name, price, purchased, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		course.ID,
		course.Name,
		course.Price,
		course.Purchased,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCourseExists
		}
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

// GetCourseByID retrieves a course by its ID.
func (r *Repository) GetCourseByID(ctx context.Context, id string) (*model.Course, error) {
	query := `
		SELECT id, name, price, purchased, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var course model.Course
	err := r.db.QueryRow(ctx, query, id).Scan(
		&course.ID,
		&course.Name,
		&course.Price,
		&course.Purchased,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course by ID: %w", err)
	}

	return &course, nil
}

// IncrementCoursePurchased bumps the purchase counter by one and returns
// the new value.
func (r *Repository) IncrementCoursePurchased(ctx context.Context, id string) (int64, error) {
	query := `
		UPDATE courses
		SET purchased = purchased + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING purchased
	`

	var purchased int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&purchased); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCourseNotFound
		}
		return 0, fmt.Errorf("failed to increment course purchased: %w", err)
	}

	return purchased, nil
}
