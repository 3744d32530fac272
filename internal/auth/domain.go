package auth

import (
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// User represents an account as seen by the login flow.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
}

// Profile is returned by /auth/me.
type Profile struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ErrLoginFailed is the only message a failed login ever reveals.
var ErrLoginFailed = shared.Safe("Invalid email or password", httpx.ErrUnauthorized)
