package model

import "time"

// Admin is an administrator who can sign in and view the key dashboard.
// Passwords are stored as bcrypt hashes.
type Admin struct {
	ID           int64     `json:"id" db:"admin_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
