// Package model defines the records the ledger stores and returns: members,
// their reward payment record and their transactions.
package model

import "time"

// Account status values. Status is a free-form string; these are the two the
// ledger itself writes or starts from.
const (
	StatusPending = "pending"
	StatusLive    = "live"
)

// User represents a registered member.
//
// WHY UserID string (not an auto-increment integer)?
// Members are identified by a human-readable sequential code like "MYC0042".
// The code is allocated by the service (see service.IDAllocator) before the
// row is written, and never changes afterwards.
//
// WHY ParentUserID *string?
// The referrer is optional. A nil pointer serializes to JSON null and maps to
// SQL NULL; the store sets it back to NULL when the referrer is deleted.
//
// PasswordHash is tagged `json:"-"` so it can never leak through the API.
type User struct {
	UserID        string    `json:"userId"        db:"user_id"`
	Name          string    `json:"name"          db:"name"`
	Email         string    `json:"email"         db:"email"`
	Mobile        string    `json:"mobile"        db:"mobile"`
	PasswordHash  string    `json:"-"             db:"password_hash"`
	Position      *string   `json:"position"      db:"position"`
	Coins         int64     `json:"coins"         db:"coins"`
	EmailVerified bool      `json:"emailVerified" db:"email_verified"`
	ReferralCode  string    `json:"referralCode"  db:"referral_code"`
	ParentUserID  *string   `json:"parentUserId"  db:"parent_user_id"` // referrer, weak reference
	Status        string    `json:"status"        db:"status"`
	IsAdmin       bool      `json:"isAdmin"       db:"is_admin"`
	JoiningDate   time.Time `json:"joiningDate"   db:"joining_date"`
	ActiveDate    time.Time `json:"activeDate"    db:"active_date"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// UserUpdate carries the profile fields a caller may change.
// A nil field means "leave unchanged".
type UserUpdate struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Mobile        *string `json:"mobile"`
	Position      *string `json:"position"`
	EmailVerified *bool   `json:"emailVerified"`
}

// CoinBalance is the projection returned after a coin update.
type CoinBalance struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
	Coins  int64  `json:"coins"`
}

// Ack is the acknowledgement returned by delete operations.
type Ack struct {
	Message string `json:"message"`
}
