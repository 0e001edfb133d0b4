package identity

import "time"

// User represents a registered wallet owner, identified by phone number.
type User struct {
	ID           string
	Phone        string
	Name         string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials request structure.
type Credentials struct {
	Phone    string
	Password string
	Name     string
}
