package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/events"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// maxRegisterAttempts bounds how often a registration re-allocates after the
// store rejects its user ID or referral code as already taken.
const maxRegisterAttempts = 5

// RegisterInput is what a new member submits.
type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode"`
}

// Registrar creates members.
type Registrar struct {
	users     repository.UserRepository
	hasher    Hasher
	ids       *IDAllocator
	codes     *CodeGenerator
	publisher events.Publisher
	logger    *slog.Logger
}

func NewRegistrar(
	users repository.UserRepository,
	hasher Hasher,
	ids *IDAllocator,
	codes *CodeGenerator,
	publisher events.Publisher,
	logger *slog.Logger,
) *Registrar {
	return &Registrar{
		users:     users,
		hasher:    hasher,
		ids:       ids,
		codes:     codes,
		publisher: publisher,
		logger:    logger,
	}
}

// Register validates in, hashes the password, resolves the referrer and
// persists the new user together with its opening payment record.
//
// REFERRAL CODES NEVER BLOCK SIGNUP:
// An unknown referral code is logged and the user is created without a
// parent. The same applies when the referrer is deleted between lookup and
// insert.
//
// RACES:
// IDAllocator and CodeGenerator read, then the store writes. When a
// concurrent registration wins, the store reports a conflict on userId or
// referralCode and we allocate again, up to maxRegisterAttempts. A conflict
// on email or mobile is the caller's problem and is returned as-is.
func (r *Registrar) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in, err := validateRegistration(in)
	if err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperror.HashingFailed(err)
	}

	parent, err := r.resolveReferrer(ctx, in.ReferralCode)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxRegisterAttempts; attempt++ {
		userID, err := r.ids.Next(ctx)
		if err != nil {
			return nil, err
		}
		code, err := r.codes.Generate(ctx)
		if err != nil {
			return nil, err
		}

		user := &model.User{
			UserID:       userID,
			Name:         in.Name,
			Email:        in.Email,
			Mobile:       in.Mobile,
			PasswordHash: hash,
			ReferralCode: code,
			ParentUserID: parent,
			Status:       model.StatusPending,
		}

		err = r.users.CreateUser(ctx, user)
		if err == nil {
			r.logger.Info("user registered",
				slog.String("userId", user.UserID),
				slog.String("parentUserId", derefOr(parent, "")),
				slog.Int("attempt", attempt),
			)
			events.Emit(ctx, r.publisher, r.logger, events.New(events.TypeUserRegistered, user.UserID,
				map[string]any{"parentUserId": derefOr(parent, ""), "referralCode": user.ReferralCode}))
			return user, nil
		}
		lastErr = err

		var appErr *apperror.AppError
		switch {
		case errors.Is(err, apperror.ErrConflict) && errors.As(err, &appErr) &&
			(appErr.Field == "userId" || appErr.Field == "referralCode"):
			r.logger.Warn("identifier taken by a concurrent registration, reallocating",
				slog.String("field", appErr.Field),
				slog.String("userId", userID),
				slog.Int("attempt", attempt),
			)
			continue

		case errors.Is(err, apperror.ErrNotFound) && parent != nil:
			r.logger.Warn("referrer disappeared before insert, registering without parent",
				slog.String("parentUserId", *parent),
			)
			parent = nil
			continue

		case errors.Is(err, apperror.ErrConflict):
			return nil, err

		default:
			r.logger.Error("failed to register user",
				slog.String("userId", userID),
				slog.String("error", err.Error()),
			)
			return nil, apperror.PersistenceFailed("unable to register user", err)
		}
	}

	return nil, apperror.AllocationFailed("user identity",
		fmt.Errorf("gave up after %d attempts: %w", maxRegisterAttempts, lastErr))
}

// resolveReferrer returns the user ID owning code, or nil when code is empty
// or unknown.
func (r *Registrar) resolveReferrer(ctx context.Context, code string) (*string, error) {
	if code == "" {
		return nil, nil
	}

	referrer, err := r.users.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			r.logger.Warn("unknown referral code, registering without parent",
				slog.String("referralCode", code),
			)
			return nil, nil
		}
		return nil, apperror.PersistenceFailed("unable to resolve referral code", err)
	}

	parent := referrer.UserID
	return &parent, nil
}

func validateRegistration(in RegisterInput) (RegisterInput, error) {
	var err error
	if in.Name, err = required("name", in.Name); err != nil {
		return in, err
	}
	if in.Email, err = normalizeEmail(in.Email); err != nil {
		return in, err
	}
	if in.Mobile, err = required("mobile", in.Mobile); err != nil {
		return in, err
	}

	if strings.TrimSpace(in.Password) == "" {
		return in, apperror.ValidationFailed("password", "password is required")
	}
	if len(in.Password) > MaxPasswordBytes {
		return in, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}

	in.ReferralCode = strings.ToUpper(strings.TrimSpace(in.ReferralCode))
	return in, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
