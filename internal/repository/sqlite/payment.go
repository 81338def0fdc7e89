package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

var _ repository.PaymentRepository = (*DB)(nil)

const paymentColumns = `id, user_id, total_amount, status, created_at, updated_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.TotalAmount,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByUserID returns the payment record owned by userID.
// Returns apperror.ErrNotFound if the user has none.
func (db *DB) GetPaymentByUserID(ctx context.Context, userID string) (*model.Payment, error) {
	return getPaymentByUserID(ctx, db.conn, userID)
}

func getPaymentByUserID(ctx context.Context, q querier, userID string) (*model.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ?`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("payment", userID)
		}
		return nil, fmt.Errorf("sqlite: getting payment for %s: %w", userID, err)
	}
	return p, nil
}
