package auth

import (
	"errors"
	"time"
)

// User represents a seller or administrator account. The id is recorded as
// the responsible user on every sale.
type User struct {
	ID           int64
	Username     string
	FullName     string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// ErrInvalidCredentials indicates login failure; the cause is deliberately
// not distinguished.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")
