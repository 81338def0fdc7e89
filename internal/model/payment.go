package model

import "time"

// Payment is the per-user reward ledger record.
//
// TotalAmount only grows: the reward ledger adds the referral reward to the
// referrer's record and nothing in this service subtracts from it.
type Payment struct {
	ID          int64     `json:"id"          db:"id"`
	UserID      *string   `json:"userId"      db:"user_id"` // NULL once the owner is deleted
	TotalAmount int64     `json:"totalAmount" db:"total_amount"`
	Status      string    `json:"status"      db:"status"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}
