package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"time"
)

const codeDigits = 6

// Purpose namespaces codes so a verification code can never be replayed
// against another flow for the same identifier.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
)

var (
	// ErrCooldown is returned by Issue when the previous code for the same
	// key is still inside its minimum reissue window.
	ErrCooldown = errors.New("otp: reissue window not elapsed")
	// ErrCodeInvalid is returned by Verify for missing, expired, or wrong
	// codes. Callers cannot tell those apart, deliberately.
	ErrCodeInvalid = errors.New("otp: invalid or expired code")
)

// Issuer generates, stores, and verifies 6-digit one-time codes. Only the
// SHA-256 of a code is stored; codes are single-use and deleted the moment
// they verify.
type Issuer struct {
	store    Store
	ttl      time.Duration
	cooldown time.Duration
}

func NewIssuer(store Store, ttl, cooldown time.Duration) *Issuer {
	return &Issuer{store: store, ttl: ttl, cooldown: cooldown}
}

// Issue generates a fresh code for (purpose, identifier), overwriting any
// outstanding one. A code's issuance time is derived from the remaining TTL
// of the stored entry, so no extra bookkeeping is needed for the reissue
// window: age = ttl - remaining.
func (i *Issuer) Issue(ctx context.Context, purpose Purpose, identifier string) (string, error) {
	key := entryKey(purpose, identifier)
	if _, remaining, err := i.store.Get(ctx, key); err == nil {
		if age := i.ttl - remaining; age < i.cooldown {
			return "", ErrCooldown
		}
	} else if !errors.Is(err, ErrNoEntry) {
		return "", err
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	if err := i.store.Put(ctx, key, hashCode(code), i.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks the supplied code and consumes it on success. Compare and
// delete happen atomically inside the store, so of any number of concurrent
// verifications with the same code exactly one succeeds; the rest see the
// entry already gone. A wrong code does not consume the entry.
func (i *Issuer) Verify(ctx context.Context, purpose Purpose, identifier, code string) error {
	ok, err := i.store.CompareAndDelete(ctx, entryKey(purpose, identifier), hashCode(code))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeInvalid
	}
	return nil
}

func entryKey(purpose Purpose, identifier string) string {
	return string(purpose) + ":" + identifier
}

// generateCode draws each digit from crypto/rand so codes are uniform and
// unpredictable.
func generateCode() (string, error) {
	buf := make([]byte, 0, codeDigits)
	ten := big.NewInt(10)
	for range codeDigits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf = append(buf, byte('0'+n.Int64()))
	}
	return string(buf), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
