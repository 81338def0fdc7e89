package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// UserService serves the member reads and the profile, coin and delete
// operations. Status changes go through RewardLedger.
type UserService struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	logger   *slog.Logger
}

func NewUserService(users repository.UserRepository, payments repository.PaymentRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, payments: payments, logger: logger}
}

func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Update applies the non-nil fields of upd to the user's profile.
func (s *UserService) Update(ctx context.Context, userID string, upd model.UserUpdate) (*model.User, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if user.Name, err = required("name", *upd.Name); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil {
		if user.Email, err = normalizeEmail(*upd.Email); err != nil {
			return nil, err
		}
	}
	if upd.Mobile != nil {
		if user.Mobile, err = required("mobile", *upd.Mobile); err != nil {
			return nil, err
		}
	}
	if upd.Position != nil {
		if pos := strings.TrimSpace(*upd.Position); pos == "" {
			user.Position = nil
		} else {
			user.Position = &pos
		}
	}
	if upd.EmailVerified != nil {
		user.EmailVerified = *upd.EmailVerified
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, s.writeFailed("update user", userID, err)
	}

	s.logger.Info("user updated", slog.String("userId", userID))
	return user, nil
}

// UpdateCoinsByEmail sets the coin balance of the user registered under email.
func (s *UserService) UpdateCoinsByEmail(ctx context.Context, email string, coins int64) (*model.CoinBalance, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if coins < 0 {
		return nil, apperror.ValidationFailed("coins", "coins must not be negative")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	user.Coins = coins
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, s.writeFailed("update coins", user.UserID, err)
	}

	s.logger.Info("user coins updated",
		slog.String("userId", user.UserID),
		slog.Int64("coins", coins),
	)
	return &model.CoinBalance{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Mobile: user.Mobile,
		Coins:  user.Coins,
	}, nil
}

// Delete removes a user. Referees stay, with their parent cleared.
func (s *UserService) Delete(ctx context.Context, userID string) (*model.Ack, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return nil, s.writeFailed("delete user", userID, err)
	}

	s.logger.Info("user deleted", slog.String("userId", userID))
	return &model.Ack{Message: "User deleted successfully"}, nil
}

// Payment returns the user's reward ledger record.
func (s *UserService) Payment(ctx context.Context, userID string) (*model.Payment, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}
	return s.payments.GetPaymentByUserID(ctx, userID)
}

// writeFailed passes domain errors (not found, conflict) through and wraps
// anything else as a persistence failure.
func (s *UserService) writeFailed(op, userID string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("failed to "+op,
		slog.String("userId", userID),
		slog.String("error", err.Error()),
	)
	return apperror.PersistenceFailed("unable to "+op, err)
}
