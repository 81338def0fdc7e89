package model

import (
	"encoding/json"
	"time"
)

// Transaction records a financial event for a user.
//
// Details is free-form JSON supplied by the caller; the service stores it
// verbatim and never interprets it.
type Transaction struct {
	TransID   string          `json:"transId"   db:"trans_id"`
	UserID    *string         `json:"userId"    db:"user_id"`
	Type      string          `json:"type"      db:"type"`
	Amount    int64           `json:"amount"    db:"amount"`
	Status    string          `json:"status"    db:"status"`
	Reference string          `json:"reference" db:"reference"`
	Details   json.RawMessage `json:"details"   db:"details"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// TransactionUpdate carries the fields a caller may change on a transaction.
// A nil field means "leave unchanged".
type TransactionUpdate struct {
	Type      *string         `json:"type"`
	Amount    *int64          `json:"amount"`
	Status    *string         `json:"status"`
	Reference *string         `json:"reference"`
	Details   json.RawMessage `json:"details"`
}
