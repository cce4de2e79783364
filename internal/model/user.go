package model

import "time"

// User is the end-user record an API key is issued to. A user is created in
// the same transaction as its key and is never written on its own.
type User struct {
	ID        int64     `json:"user_id" db:"user_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  *string   `json:"last_name,omitempty" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	UserSince time.Time `json:"user_since" db:"user_since"`
}
