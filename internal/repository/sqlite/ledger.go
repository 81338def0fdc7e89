package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

var _ repository.LedgerRepository = (*DB)(nil)

// WithinLedgerTx runs fn inside one SQL transaction.
//
// The reward ledger touches three rows (referrer payment, referee payment,
// referee user). Running them here means a failure on any write leaves none
// of them applied.
func (db *DB) WithinLedgerTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning ledger transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing ledger transaction: %w", err)
	}
	return nil
}

// ledgerTx implements repository.LedgerTx over an open *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (l *ledgerTx) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return getUserByID(ctx, l.tx, userID)
}

func (l *ledgerTx) GetPayment(ctx context.Context, userID string) (*model.Payment, error) {
	return getPaymentByUserID(ctx, l.tx, userID)
}

// CreditPayment adds amount in SQL so the read and the write cannot interleave
// with another credit.
func (l *ledgerTx) CreditPayment(ctx context.Context, userID string, amount int64) error {
	result, err := l.tx.ExecContext(ctx,
		`UPDATE payments SET total_amount = total_amount + ?, updated_at = ? WHERE user_id = ?`,
		amount, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: crediting payment for %s: %w", userID, err)
	}
	return expectOneRow(result, "payment", userID)
}

func (l *ledgerTx) SetPaymentStatus(ctx context.Context, userID, status string) error {
	result, err := l.tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE user_id = ?`,
		status, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting payment status for %s: %w", userID, err)
	}
	return expectOneRow(result, "payment", userID)
}

func (l *ledgerTx) SetUserStatus(ctx context.Context, userID, status string) error {
	result, err := l.tx.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE user_id = ?`,
		status, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting status for %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}
