// Package service contains the business logic of the membership ledger.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, allocates identifiers, moves rewards
//	Repository (Data layer)  → reads/writes SQLite
//
// Every service takes repository interfaces, never *sqlite.DB, so the tests
// in this package run against in-memory fakes.
//
// THE COMPONENTS (leaf first):
//
//	IDAllocator    → next sequential user ID ("MYC0001", "MYC0002", ...)
//	CodeGenerator  → random unique referral code ("REF4821QZ")
//	Registrar      → validates, resolves the referrer, allocates, hashes, persists
//	RewardLedger   → status change + referral reward, in one store transaction
//	UserService, TransactionService → the plain CRUD operations around them
package service

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	MaxPasswordBytes = 72 // bcrypt truncates beyond this
)

// Hasher is the credential hashing collaborator (auth.PasswordService in
// production).
type Hasher interface {
	Hash(plaintext string) (string, error)
}

func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

// required trims value and rejects it when empty.
func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	}
	return value, nil
}

// normalizeEmail trims, validates and lower-cases an email address.
// Display-name forms ("Ann <ann@example.com>") are rejected.
func normalizeEmail(email string) (string, error) {
	email, err := required("email", email)
	if err != nil {
		return "", err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not a valid address")
	}
	return strings.ToLower(email), nil
}
