// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Role constants for users and principals.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a learner account and the set of courses it owns.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Courses   []string  `json:"courses"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnsCourse reports whether courseID is already in the owned list.
func (u *User) OwnsCourse(courseID string) bool {
	return slices.Contains(u.Courses, courseID)
}

// WithCourse returns a copy of the user with courseID appended to the owned
// list. The receiver is left untouched and a course is never added twice.
func (u *User) WithCourse(courseID string) *User {
	clone := *u
	clone.Courses = slices.Clone(u.Courses)
	if !clone.OwnsCourse(courseID) {
		clone.Courses = append(clone.Courses, courseID)
	}
	return &clone
}
