package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Role distinguishes regular users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a principal holding a prepaid credit balance.
// Users are never hard-deleted; suspension flips Active instead.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Credits      int64     `json:"credits"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageEvent records one metered tool invocation attempt. Written exactly
// once per attempt, immutable afterwards. Email is denormalized so the audit
// trail stays readable even if the user record changes later.
type UsageEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	Tool        string    `json:"tool"`
	CreditsUsed int64     `json:"credits_used"`
	Status      string    `json:"status"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditAdjustment records one administrative balance change. Positive
// amounts grant credits, negative amounts revoke them.
type CreditAdjustment struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	AdminID      string    `json:"admin_id"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidEmail      = errors.New("email is required")
	ErrInvalidAdjustment = errors.New("adjustment would drive balance below zero")
	ErrInvalidAmount     = errors.New("invalid amount (must be > 0)")
)

// InsufficientCreditsError is returned by Debit when the balance cannot
// cover the requested charge. No mutation happens in that case.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}
