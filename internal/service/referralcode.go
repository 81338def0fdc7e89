package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/sakif/membership-ledger/internal/apperror"
)

const (
	// DefaultReferralCodePrefix is prepended to every generated code.
	DefaultReferralCodePrefix = "REF"

	// maxCodeAttempts bounds the collision loop. The code space is
	// 9000 × 26 × 26 ≈ 6.1M per prefix.
	maxCodeAttempts = 100
)

var errCodeSpaceExhausted = errors.New("no unused referral code found")

// ReferralCodeChecker is the store read the generator needs.
type ReferralCodeChecker interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces referral codes of the form prefix + 1000..9999 +
// two letters A-Z, e.g. "REF4821QZ", that no stored user holds yet.
//
// The existence check and the later insert are not atomic: two registrations
// can pick the same free code. users.referral_code is UNIQUE, and the
// registrar retries with a fresh code when that happens.
type CodeGenerator struct {
	store  ReferralCodeChecker
	prefix string

	mu  sync.Mutex // guards rng; *rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewCodeGenerator creates a CodeGenerator. A nil rng seeds a fresh PCG source.
func NewCodeGenerator(store ReferralCodeChecker, prefix string, rng *rand.Rand) *CodeGenerator {
	if prefix == "" {
		prefix = DefaultReferralCodePrefix
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &CodeGenerator{store: store, prefix: prefix, rng: rng}
}

// Generate returns a code not currently assigned to any user.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code := g.candidate()

		exists, err := g.store.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", apperror.AllocationFailed("referral code", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperror.AllocationFailed("referral code", errCodeSpaceExhausted)
}

func (g *CodeGenerator) candidate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, 0, len(g.prefix)+6)
	buf = append(buf, g.prefix...)
	buf = strconv.AppendInt(buf, int64(1000+g.rng.IntN(9000)), 10)
	buf = append(buf, byte('A'+g.rng.IntN(26)), byte('A'+g.rng.IntN(26)))
	return string(buf)
}
