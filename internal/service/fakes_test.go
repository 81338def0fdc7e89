package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/events"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// fakeStore is an in-memory implementation of every repository interface.
// It enforces the same uniqueness rules as the SQLite store and lets tests
// inject errors.
type fakeStore struct {
	users        map[string]*model.User
	payments     map[string]*model.Payment
	transactions map[string]*model.Transaction
	nextTransID  int

	// createErrs are returned, in order, by CreateUser before any real insert.
	createErrs []error
	latestErr  error
	existsErr  error
	// failSetUserStatus makes the last ledger write fail.
	failSetUserStatus error
	createCalls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[string]*model.User{},
		payments:     map[string]*model.Payment{},
		transactions: map[string]*model.Transaction{},
	}
}

var (
	_ repository.UserRepository        = (*fakeStore)(nil)
	_ repository.PaymentRepository     = (*fakeStore)(nil)
	_ repository.TransactionRepository = (*fakeStore)(nil)
	_ repository.LedgerRepository      = (*fakeStore)(nil)
)

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return err
	}
	for _, existing := range f.users {
		switch {
		case existing.UserID == u.UserID:
			return apperror.Conflict("user", "userId")
		case existing.Email == u.Email:
			return apperror.Conflict("user", "email")
		case existing.Mobile == u.Mobile:
			return apperror.Conflict("user", "mobile")
		case existing.ReferralCode == u.ReferralCode:
			return apperror.Conflict("user", "referralCode")
		}
	}
	if u.ParentUserID != nil {
		if _, ok := f.users[*u.ParentUserID]; !ok {
			return apperror.NotFound("user", *u.ParentUserID)
		}
	}
	stored := *u
	f.users[u.UserID] = &stored
	owner := u.UserID
	f.payments[u.UserID] = &model.Payment{ID: int64(len(f.payments) + 1), UserID: &owner, Status: model.StatusPending}
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) GetUserByReferralCode(_ context.Context, code string) (*model.User, error) {
	for _, u := range f.users {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("referral code", code)
}

func (f *fakeStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, u := range f.users {
		if u.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) LatestUserID(_ context.Context) (string, error) {
	if f.latestErr != nil {
		return "", f.latestErr
	}
	latest := ""
	for id := range f.users {
		if id > latest {
			latest = id
		}
	}
	return latest, nil
}

func (f *fakeStore) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []model.User{}
	for i, id := range ids {
		if i < opts.Offset {
			continue
		}
		if len(out) == opts.Limit {
			break
		}
		out = append(out, *f.users[id])
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	if _, ok := f.users[u.UserID]; !ok {
		return apperror.NotFound("user", u.UserID)
	}
	for id, existing := range f.users {
		if id != u.UserID && existing.Email == u.Email {
			return apperror.Conflict("user", "email")
		}
	}
	stored := *u
	f.users[u.UserID] = &stored
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, userID string) error {
	if _, ok := f.users[userID]; !ok {
		return apperror.NotFound("user", userID)
	}
	delete(f.users, userID)
	for _, u := range f.users {
		if u.ParentUserID != nil && *u.ParentUserID == userID {
			u.ParentUserID = nil
		}
	}
	if p, ok := f.payments[userID]; ok {
		p.UserID = nil
		delete(f.payments, userID)
	}
	return nil
}

func (f *fakeStore) GetPaymentByUserID(_ context.Context, userID string) (*model.Payment, error) {
	p, ok := f.payments[userID]
	if !ok {
		return nil, apperror.NotFound("payment", userID)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t *model.Transaction) error {
	f.nextTransID++
	t.TransID = fmt.Sprintf("tx-%d", f.nextTransID)
	stored := *t
	f.transactions[t.TransID] = &stored
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, transID string) (*model.Transaction, error) {
	t, ok := f.transactions[transID]
	if !ok {
		return nil, apperror.NotFound("transaction", transID)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	out := []model.Transaction{}
	for _, t := range f.transactions {
		if t.UserID != nil && *t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, opts repository.ListOptions) ([]model.Transaction, error) {
	out := []model.Transaction{}
	for _, t := range f.transactions {
		out = append(out, *t)
	}
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, t *model.Transaction) error {
	if _, ok := f.transactions[t.TransID]; !ok {
		return apperror.NotFound("transaction", t.TransID)
	}
	stored := *t
	f.transactions[t.TransID] = &stored
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, transID string) error {
	if _, ok := f.transactions[transID]; !ok {
		return apperror.NotFound("transaction", transID)
	}
	delete(f.transactions, transID)
	return nil
}

// WithinLedgerTx snapshots users and payments and restores them if fn fails.
func (f *fakeStore) WithinLedgerTx(_ context.Context, fn func(tx repository.LedgerTx) error) error {
	users := deepCopy(f.users)
	payments := deepCopy(f.payments)

	if err := fn(fakeLedgerTx{f}); err != nil {
		f.users = users
		f.payments = payments
		return err
	}
	return nil
}

func deepCopy[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

type fakeLedgerTx struct{ f *fakeStore }

func (t fakeLedgerTx) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return t.f.GetUserByID(ctx, userID)
}

func (t fakeLedgerTx) GetPayment(ctx context.Context, userID string) (*model.Payment, error) {
	return t.f.GetPaymentByUserID(ctx, userID)
}

func (t fakeLedgerTx) CreditPayment(_ context.Context, userID string, amount int64) error {
	p, ok := t.f.payments[userID]
	if !ok {
		return apperror.NotFound("payment", userID)
	}
	p.TotalAmount += amount
	return nil
}

func (t fakeLedgerTx) SetPaymentStatus(_ context.Context, userID, status string) error {
	p, ok := t.f.payments[userID]
	if !ok {
		return apperror.NotFound("payment", userID)
	}
	p.Status = status
	return nil
}

func (t fakeLedgerTx) SetUserStatus(_ context.Context, userID, status string) error {
	if t.f.failSetUserStatus != nil {
		return t.f.failSetUserStatus
	}
	u, ok := t.f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Status = status
	return nil
}

// fakeHasher prefixes the password instead of running bcrypt.
type fakeHasher struct{ err error }

func (h fakeHasher) Hash(plaintext string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plaintext, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var errStoreDown = errors.New("store down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
