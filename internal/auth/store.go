package auth

import (
	"context"
	"time"
)

// User is a credential record. PasswordHash never leaves this package in any
// response shape.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              Role
	CompanyID         string
	PasswordTemporary bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserStore describes the persistence operations the credential gateway
// needs. Email uniqueness is enforced by the store (case-insensitive).
type UserStore interface {
	// Create inserts the user; ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpdatePassword replaces the hash and sets the temporary flag.
	UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error
}
