package model

import "time"

// KeyStatusActive is the status every newly issued key starts with.
const KeyStatusActive = "active"

// APIKey is an opaque bearer credential owned by a User. The SHA-256 digest is
// always stored; the raw value is stored alongside it only when plaintext
// persistence is enabled.
type APIKey struct {
	ID         int64     `json:"key_id" db:"key_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	KeyHash    string    `json:"-" db:"api_key_hash"`  // SHA-256 hex digest
	KeyValue   string    `json:"-" db:"api_key_value"` // raw key, never expose
	Status     string    `json:"status" db:"status"`
	ExpiryDate time.Time `json:"expiry_date" db:"expiry_date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DashboardRow is one user joined with its key, as shown to administrators.
type DashboardRow struct {
	UserID      int64     `json:"user_id" db:"user_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	Email       string    `json:"email" db:"email"`
	UserSince   time.Time `json:"user_since" db:"user_since"`
	APIKeyValue string    `json:"api_key_value" db:"api_key_value"`
	Status      string    `json:"status" db:"status"`
	ExpiryDate  time.Time `json:"expiry_date" db:"expiry_date"`
}
