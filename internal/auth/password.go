package auth

// WHY BCRYPT?
// bcrypt is deliberately slow, salts every hash, and embeds salt and cost in
// its output, so the stored string is all that is needed to verify later:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when BCRYPT_COST is unset.
// Roughly 250ms per hash on a modern server.
const DefaultCost = 12

// maxPasswordBytes is where bcrypt starts silently truncating input.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for input bcrypt would truncate.
var ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")

// PasswordService provides bcrypt hashing and verification.
//
// The cost is injected so tests can run at bcrypt.MinCost (4).
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// The cost must lie within [bcrypt.MinCost, bcrypt.MaxCost].
func NewPasswordService(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// NewPasswordServiceForTest returns a PasswordService at bcrypt.MinCost.
// Do NOT use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes plaintext with bcrypt. The result is stored as-is in
// users.password_hash.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash.
// The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
