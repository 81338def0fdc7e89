package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// TransactionInput is what a caller submits to record a transaction.
type TransactionInput struct {
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Amount    int64           `json:"amount"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Details   json.RawMessage `json:"details"`
}

// TransactionService records monetary events against members. It keeps no
// balance of its own; Payment totals are moved only by RewardLedger.
type TransactionService struct {
	transactions repository.TransactionRepository
	users        repository.UserRepository
	logger       *slog.Logger
}

func NewTransactionService(transactions repository.TransactionRepository, users repository.UserRepository, logger *slog.Logger) *TransactionService {
	return &TransactionService{transactions: transactions, users: users, logger: logger}
}

func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (*model.Transaction, error) {
	userID, err := required("userId", in.UserID)
	if err != nil {
		return nil, err
	}
	txType, err := required("type", in.Type)
	if err != nil {
		return nil, err
	}
	if err := validDetails(in.Details); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = model.StatusPending
	}

	t := &model.Transaction{
		UserID:    &userID,
		Type:      txType,
		Amount:    in.Amount,
		Status:    status,
		Reference: strings.TrimSpace(in.Reference),
		Details:   in.Details,
	}
	if err := s.transactions.CreateTransaction(ctx, t); err != nil {
		return nil, s.writeFailed("create transaction", "", err)
	}

	s.logger.Info("transaction created",
		slog.String("transId", t.TransID),
		slog.String("userId", userID),
		slog.String("type", t.Type),
		slog.Int64("amount", t.Amount),
	)
	return t, nil
}

func (s *TransactionService) Get(ctx context.Context, transID string) (*model.Transaction, error) {
	transID, err := required("transId", transID)
	if err != nil {
		return nil, err
	}
	return s.transactions.GetTransaction(ctx, transID)
}

// ListByUser returns userID's transactions, newest first.
func (s *TransactionService) ListByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	userID, err := required("userId", userID)
	if err != nil {
		return nil, err
	}
	list, err := s.transactions.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %s: %w", userID, err)
	}
	return list, nil
}

func (s *TransactionService) List(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	list, err := s.transactions.ListTransactions(ctx, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list transactions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return list, nil
}

// Update applies the non-nil fields of upd.
func (s *TransactionService) Update(ctx context.Context, transID string, upd model.TransactionUpdate) (*model.Transaction, error) {
	transID, err := required("transId", transID)
	if err != nil {
		return nil, err
	}

	t, err := s.transactions.GetTransaction(ctx, transID)
	if err != nil {
		return nil, err
	}

	if upd.Type != nil {
		if t.Type, err = required("type", *upd.Type); err != nil {
			return nil, err
		}
	}
	if upd.Amount != nil {
		t.Amount = *upd.Amount
	}
	if upd.Status != nil {
		if t.Status, err = required("status", *upd.Status); err != nil {
			return nil, err
		}
	}
	if upd.Reference != nil {
		t.Reference = strings.TrimSpace(*upd.Reference)
	}
	if upd.Details != nil {
		if err := validDetails(upd.Details); err != nil {
			return nil, err
		}
		t.Details = upd.Details
	}

	if err := s.transactions.UpdateTransaction(ctx, t); err != nil {
		return nil, s.writeFailed("update transaction", transID, err)
	}

	s.logger.Info("transaction updated", slog.String("transId", transID))
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, transID string) (*model.Ack, error) {
	transID, err := required("transId", transID)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.DeleteTransaction(ctx, transID); err != nil {
		return nil, s.writeFailed("delete transaction", transID, err)
	}

	s.logger.Info("transaction deleted", slog.String("transId", transID))
	return &model.Ack{Message: "Transaction deleted successfully"}, nil
}

func (s *TransactionService) writeFailed(op, transID string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("failed to "+op,
		slog.String("transId", transID),
		slog.String("error", err.Error()),
	)
	return apperror.PersistenceFailed("unable to "+op, err)
}

// validDetails accepts an absent payload or any well-formed JSON value.
func validDetails(d json.RawMessage) error {
	if len(d) == 0 || json.Valid(d) {
		return nil
	}
	return apperror.ValidationFailed("details", "details must be valid JSON")
}
