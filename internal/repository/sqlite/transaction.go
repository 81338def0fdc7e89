package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

var _ repository.TransactionRepository = (*DB)(nil)

const transactionColumns = `trans_id, user_id, type, amount, status, reference, details,
	created_at, updated_at`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var details sql.NullString
	err := row.Scan(
		&t.TransID,
		&t.UserID,
		&t.Type,
		&t.Amount,
		&t.Status,
		&t.Reference,
		&details,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if details.Valid {
		t.Details = json.RawMessage(details.String)
	}
	return &t, nil
}

// detailsValue stores an empty payload as SQL NULL.
func detailsValue(d json.RawMessage) sql.NullString {
	if len(d) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(d), Valid: true}
}

// CreateTransaction inserts a transaction.
//
// ID GENERATION WITH xid:
// TransID is filled in when the caller left it empty. xid IDs are 20 chars,
// URL-safe and sort by creation time, e.g. "cv37rs3pp9olc6atsptg".
//
// A user_id that does not reference an existing user fails the FOREIGN KEY
// constraint and comes back as apperror.NotFound for that user.
func (db *DB) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	if t.TransID == "" {
		t.TransID = xid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransID,
		t.UserID,
		t.Type,
		t.Amount,
		t.Status,
		t.Reference,
		detailsValue(t.Details),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.Conflict("transaction", fieldFor(column))
		}
		if foreignKeyViolation(err) {
			return apperror.NotFound("user", deref(t.UserID))
		}
		return fmt.Errorf("sqlite: creating transaction: %w", err)
	}
	return nil
}

func (db *DB) GetTransaction(ctx context.Context, transID string) (*model.Transaction, error) {
	t, err := scanTransaction(db.conn.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE trans_id = ?`, transID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("transaction", transID)
		}
		return nil, fmt.Errorf("sqlite: getting transaction %s: %w", transID, err)
	}
	return t, nil
}

// ListTransactionsByUser returns every transaction for userID, newest first.
// An unknown user yields an empty slice, not an error.
func (db *DB) ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, trans_id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing transactions for %s: %w", userID, err)
	}
	return collectTransactions(rows)
}

func (db *DB) ListTransactions(ctx context.Context, opts repository.ListOptions) ([]model.Transaction, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 ORDER BY created_at DESC, trans_id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing transactions: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning transaction row: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating transactions: %w", err)
	}
	return transactions, nil
}

// UpdateTransaction rewrites the mutable columns. trans_id, user_id and
// created_at never change.
func (db *DB) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	t.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE transactions
		 SET type = ?, amount = ?, status = ?, reference = ?, details = ?, updated_at = ?
		 WHERE trans_id = ?`,
		t.Type,
		t.Amount,
		t.Status,
		t.Reference,
		detailsValue(t.Details),
		t.UpdatedAt,
		t.TransID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating transaction %s: %w", t.TransID, err)
	}
	return expectOneRow(result, "transaction", t.TransID)
}

func (db *DB) DeleteTransaction(ctx context.Context, transID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE trans_id = ?`, transID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting transaction %s: %w", transID, err)
	}
	return expectOneRow(result, "transaction", transID)
}
