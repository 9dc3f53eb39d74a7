package models

import "time"

// UserRole represents the available roles for access control.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Username     string    `db:"username" json:"username"`
	Role         UserRole  `db:"role" json:"role"`
	KarmaPoints  int       `db:"karma_points" json:"karma_points"`
	UniversityID *string   `db:"university_id" json:"university_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserProfile is a user row joined with the affiliated university name.
type UserProfile struct {
	User
	UniversityName *string `db:"university_name" json:"university_name,omitempty"`
}

// KarmaStanding aggregates a user's karma and upload activity for exports.
type KarmaStanding struct {
	Username      string `db:"username" json:"username"`
	Email         string `db:"email" json:"email"`
	KarmaPoints   int    `db:"karma_points" json:"karma_points"`
	DocumentCount int    `db:"document_count" json:"document_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
