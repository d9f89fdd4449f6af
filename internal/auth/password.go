package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Verification retry parameters. Transient comparison failures (resource
// pressure on small boxes) are retried with a linearly growing pause;
// definitive outcomes return immediately.
const (
	verifyAttempts  = 3
	verifyBaseDelay = 100 * time.Millisecond
)

// Hasher hashes and verifies passwords using bcrypt with a configurable
// cost factor. The zero value is not usable; construct with NewHasher.
type Hasher struct {
	cost int

	// compare is swappable for tests that need to simulate transient
	// failures. Production code never sets it.
	compare func(hashedPassword, password []byte) error
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside
// bcrypt's supported range are rejected at config validation; here an
// out-of-range cost falls back to the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, compare: bcrypt.CompareHashAndPassword}
}

// Cost returns the configured hashing cost factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash hashes a plaintext password and returns the bcrypt digest string.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify checks a plaintext password against a stored digest.
//
// Outcomes are classified into three kinds:
//   - wrong credential: the digest is valid but the password does not match.
//     Returns ErrInvalidCredentials immediately, no retry.
//   - malformed digest: the stored digest is not a parseable bcrypt string.
//     Returns ErrMalformedDigest immediately; retrying cannot fix data
//     corruption.
//   - transient: anything else. Retried up to verifyAttempts times with a
//     pause of verifyBaseDelay times the attempt number between tries.
//
// A nil return means the password matches. The context cancels the backoff
// pauses; the comparison itself is not interruptible.
func (h *Hasher) Verify(ctx context.Context, password, digest string) error {
	var lastErr error
	for attempt := 1; attempt <= verifyAttempts; attempt++ {
		err := h.compare([]byte(digest), []byte(password))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrInvalidCredentials
		case isMalformedDigest(err):
			return fmt.Errorf("%w: %w", ErrMalformedDigest, err)
		}

		lastErr = err
		if attempt == verifyAttempts {
			break
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*verifyBaseDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrVerifyExhausted, lastErr)
}

// isMalformedDigest reports whether a bcrypt comparison error indicates an
// unparseable stored digest rather than a transient failure.
func isMalformedDigest(err error) bool {
	if errors.Is(err, bcrypt.ErrHashTooShort) {
		return true
	}
	var versionErr bcrypt.HashVersionTooNewError
	if errors.As(err, &versionErr) {
		return true
	}
	var prefixErr bcrypt.InvalidHashPrefixError
	if errors.As(err, &prefixErr) {
		return true
	}
	var costErr bcrypt.InvalidCostError
	return errors.As(err, &costErr)
}

// sleepCtx pauses for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
