package domain

import "time"

// User is an account holder. Each user owns exactly one tenant.
type User struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
