package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account owning bookmarks
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SessionUser is the identity carried by an authenticated request
type SessionUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}
