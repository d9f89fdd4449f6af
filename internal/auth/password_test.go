package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := testHasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := testHasher.Verify(t.Context(), "correct horse battery staple", hash); err != nil {
		t.Errorf("Verify() with correct password: %v", err)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	hash, err := testHasher.Hash("right")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	start := time.Now()
	err = testHasher.Verify(t.Context(), "wrong", hash)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify() error = %v, want ErrInvalidCredentials", err)
	}
	// A wrong password is definitive. No retry pauses.
	if elapsed > 80*time.Millisecond {
		t.Errorf("wrong password took %v, should fail without retrying", elapsed)
	}
}

func TestVerify_MalformedDigest(t *testing.T) {
	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"truncated", "$2a$10$tooshort"},
		{"wrong prefix", "argon2id$v=19$nonsense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testHasher.Verify(t.Context(), "password", tt.digest)
			if !errors.Is(err, ErrMalformedDigest) {
				t.Errorf("Verify() error = %v, want ErrMalformedDigest", err)
			}
		})
	}
}

func TestVerify_TransientRetriesThenExhausts(t *testing.T) {
	transient := errors.New("resource temporarily unavailable")
	h := NewHasher(4)
	calls := 0
	h.compare = func(_, _ []byte) error {
		calls++
		return transient
	}

	start := time.Now()
	err := h.Verify(t.Context(), "password", "irrelevant")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrVerifyExhausted) {
		t.Errorf("Verify() error = %v, want ErrVerifyExhausted", err)
	}
	if !errors.Is(err, transient) {
		t.Error("exhaustion error should wrap the underlying cause")
	}
	if calls != 3 {
		t.Errorf("compare called %d times, want 3", calls)
	}
	// Pauses: 100ms after attempt 1, 200ms after attempt 2.
	if elapsed < 300*time.Millisecond {
		t.Errorf("retries took %v, want at least 300ms of backoff", elapsed)
	}
}

func TestVerify_TransientThenSuccess(t *testing.T) {
	h := NewHasher(4)
	calls := 0
	h.compare = func(_, _ []byte) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}

	if err := h.Verify(t.Context(), "password", "irrelevant"); err != nil {
		t.Errorf("Verify() should succeed on retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("compare called %d times, want 2", calls)
	}
}

func TestVerify_ContextCancelsBackoff(t *testing.T) {
	h := NewHasher(4)
	h.compare = func(_, _ []byte) error {
		return errors.New("always transient")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.Verify(ctx, "password", "irrelevant")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Verify() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("cancellation took %v, backoff should abort promptly", elapsed)
	}
}

func TestNewHasher_CostClamping(t *testing.T) {
	if got := NewHasher(0).Cost(); got != bcrypt.DefaultCost {
		t.Errorf("cost 0 should fall back to default, got %d", got)
	}
	if got := NewHasher(99).Cost(); got != bcrypt.DefaultCost {
		t.Errorf("cost 99 should fall back to default, got %d", got)
	}
	if got := NewHasher(12).Cost(); got != 12 {
		t.Errorf("valid cost should be kept, got %d", got)
	}
}

func TestHash_CostEmbedded(t *testing.T) {
	h := NewHasher(6)
	digest, err := h.Hash("password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	if cost != 6 {
		t.Errorf("digest cost = %d, want 6", cost)
	}
}
