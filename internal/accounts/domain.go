package accounts

import "time"

// User is an account identified by its unique, case-folded email. Accounts
// are deactivated, never hard-deleted.
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}
