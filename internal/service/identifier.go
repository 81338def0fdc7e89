package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/membership-ledger/internal/apperror"
)

// DefaultUserIDPrefix is prepended to every allocated user ID.
const DefaultUserIDPrefix = "MYC"

// userIDWidth is the zero-padded width of the numeric suffix.
const userIDWidth = 4

// LatestUserIDReader is the store read the allocator needs.
type LatestUserIDReader interface {
	LatestUserID(ctx context.Context) (string, error)
}

// IDAllocator derives the next sequential user ID from the highest stored one.
//
// ORDERING:
// The store sorts user IDs as strings, which matches numeric order only while
// every suffix has the same width. After "MYC9999" the allocator produces
// "MYC10000", which sorts before "MYC9999"; the following allocation then
// collides and the registrar reports an allocation failure.
//
// MALFORMED SUFFIX:
// The counter continues from the leading run of digits after the prefix, so
// legacy IDs like "MYC0005x" continue at "MYC0006". Only a suffix with no
// leading digit ("MYCabcd") restarts the counter at 1. That can collide with
// an existing "MYC0001"; the UNIQUE constraint on user_id turns the collision
// into a registrar retry and, if it persists, an allocation failure rather
// than a duplicate.
type IDAllocator struct {
	store  LatestUserIDReader
	prefix string
	logger *slog.Logger
}

// NewIDAllocator uses prefix, or DefaultUserIDPrefix when empty.
//
// Changing the prefix on a populated store is not supported: when the latest
// stored ID carries another prefix the counter starts at 1 on every call, so
// once "<prefix>0001" exists each registration collides and fails with an
// allocation error. Next logs a warning whenever it sees a foreign prefix.
func NewIDAllocator(store LatestUserIDReader, prefix string, logger *slog.Logger) *IDAllocator {
	if prefix == "" {
		prefix = DefaultUserIDPrefix
	}
	return &IDAllocator{store: store, prefix: prefix, logger: logger}
}

// Next returns the ID the next registration should use.
func (a *IDAllocator) Next(ctx context.Context) (string, error) {
	latest, err := a.store.LatestUserID(ctx)
	if err != nil {
		return "", apperror.AllocationFailed("user id", err)
	}

	return a.format(a.nextNumber(latest)), nil
}

func (a *IDAllocator) nextNumber(latest string) int {
	if latest == "" {
		return 1
	}
	if !strings.HasPrefix(latest, a.prefix) {
		a.logger.Warn("latest user id has a different prefix, restarting numbering at 1",
			slog.String("latestUserId", latest),
			slog.String("prefix", a.prefix),
		)
		return 1
	}

	suffix := latest[len(a.prefix):]
	digits := strings.IndexFunc(suffix, func(r rune) bool { return r < '0' || r > '9' })
	if digits < 0 {
		digits = len(suffix)
	}
	n, err := strconv.Atoi(suffix[:digits])
	if err != nil {
		a.logger.Warn("latest user id has a malformed suffix, restarting numbering at 1",
			slog.String("latestUserId", latest),
		)
		return 1
	}
	return n + 1
}

func (a *IDAllocator) format(n int) string {
	return fmt.Sprintf("%s%0*d", a.prefix, userIDWidth, n)
}
