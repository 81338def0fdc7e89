// Package repository declares the persistence contracts the services depend on.
// The sqlite subpackage implements all of them on a single *sqlite.DB.
package repository

import (
	"context"

	"github.com/sakif/membership-ledger/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores members.
//
// Lookups return an error matching apperror.ErrNotFound when nothing matches.
// Writes that violate a UNIQUE constraint return an error matching
// apperror.ErrConflict whose Field names the offending column.
type UserRepository interface {
	// CreateUser inserts the user together with its opening payment record,
	// atomically: either both rows exist afterwards or neither does.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	// LatestUserID returns the greatest user_id under descending string order,
	// or "" when there are no users.
	LatestUserID(ctx context.Context) (string, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, userID string) error
}

type PaymentRepository interface {
	GetPaymentByUserID(ctx context.Context, userID string) (*model.Payment, error)
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	GetTransaction(ctx context.Context, transID string) (*model.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)
	ListTransactions(ctx context.Context, opts ListOptions) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, t *model.Transaction) error
	DeleteTransaction(ctx context.Context, transID string) error
}

// LedgerTx is the set of reads and writes available inside one ledger
// transaction. Nothing is visible to other callers until the enclosing
// WithinLedgerTx returns nil.
type LedgerTx interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetPayment(ctx context.Context, userID string) (*model.Payment, error)
	// CreditPayment adds amount to the user's payment total in a single
	// UPDATE, so concurrent credits are never lost.
	CreditPayment(ctx context.Context, userID string, amount int64) error
	SetPaymentStatus(ctx context.Context, userID, status string) error
	SetUserStatus(ctx context.Context, userID, status string) error
}

// LedgerRepository runs fn inside a store transaction. If fn returns an
// error every write made through tx is rolled back.
type LedgerRepository interface {
	WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error
}
