package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/events"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// DefaultReferralReward is credited to a referrer's payment record.
const DefaultReferralReward int64 = 100

// RewardLedger applies status changes and the referral reward that comes
// with them.
type RewardLedger struct {
	ledger    repository.LedgerRepository
	reward    int64
	publisher events.Publisher
	logger    *slog.Logger
}

func NewRewardLedger(ledger repository.LedgerRepository, reward int64, publisher events.Publisher, logger *slog.Logger) *RewardLedger {
	if reward <= 0 {
		reward = DefaultReferralReward
	}
	return &RewardLedger{ledger: ledger, reward: reward, publisher: publisher, logger: logger}
}

// SetUserStatus sets userID's status to newStatus and settles the referral:
//
//  1. the referrer's payment total grows by the reward, if the user has a
//     referrer with a payment record
//  2. the user's own payment record goes "live", if it exists
//  3. the user's status becomes newStatus
//
// All three writes share one store transaction. The credit in step 1 is
// applied for every status change, not only the move to "live".
func (l *RewardLedger) SetUserStatus(ctx context.Context, userID, newStatus string) (*model.User, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}
	newStatus, err = required("status", newStatus)
	if err != nil {
		return nil, err
	}

	var (
		user     *model.User
		credited bool
	)
	err = l.ledger.WithinLedgerTx(ctx, func(tx repository.LedgerTx) error {
		credited = false

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		own, err := optionalPayment(ctx, tx, userID)
		if err != nil {
			return err
		}

		if u.ParentUserID != nil {
			referrer, err := optionalPayment(ctx, tx, *u.ParentUserID)
			if err != nil {
				return err
			}
			if referrer != nil {
				if err := tx.CreditPayment(ctx, *u.ParentUserID, l.reward); err != nil {
					return err
				}
				credited = true
			}
		}

		if own != nil {
			if err := tx.SetPaymentStatus(ctx, userID, model.StatusLive); err != nil {
				return err
			}
		}

		if err := tx.SetUserStatus(ctx, userID, newStatus); err != nil {
			return err
		}

		u.Status = newStatus
		u.UpdatedAt = time.Now().UTC()
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		l.logger.Error("failed to update user status",
			slog.String("userId", userID),
			slog.String("status", newStatus),
			slog.String("error", err.Error()),
		)
		return nil, apperror.PersistenceFailed("unable to update user status", err)
	}

	l.logger.Info("user status updated",
		slog.String("userId", userID),
		slog.String("status", newStatus),
		slog.Bool("referrerCredited", credited),
	)
	events.Emit(ctx, l.publisher, l.logger, events.New(events.TypeUserStatusChanged, userID,
		map[string]any{"status": newStatus}))
	if credited {
		events.Emit(ctx, l.publisher, l.logger, events.New(events.TypeReferralRewarded, *user.ParentUserID,
			map[string]any{"refereeUserId": userID, "amount": l.reward}))
	}

	return user, nil
}

// optionalPayment returns nil, nil when userID has no payment record.
func optionalPayment(ctx context.Context, tx repository.LedgerTx, userID string) (*model.Payment, error) {
	p, err := tx.GetPayment(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

