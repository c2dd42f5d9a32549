package models

import (
	"time"

	"weekly-expenses/internal/money"
)

// DateLayout is the storage and form layout of a calendar date.
const DateLayout = "2006-01-02"

// Expense represents a single expense owned by one user.
type Expense struct {
	ID         int64
	UserID     int64
	Amount     money.Amount
	Currency   string
	Category   string
	Date       time.Time
	Attachment string // attachment token, empty when none
}

// HasAttachment reports whether a receipt is attached.
func (e Expense) HasAttachment() bool {
	return e.Attachment != ""
}

// ExpenseInput holds the replaceable fields of an expense, already validated
// and normalized.
type ExpenseInput struct {
	Amount     money.Amount
	Currency   string
	Category   string
	Date       time.Time
	Attachment string
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CivilDate truncates t to midnight UTC of its calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
