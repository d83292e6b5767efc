package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLockoutPolicyThreshold(t *testing.T) {
	now := time.Now()
	p := LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}

	for n := 1; n < 5; n++ {
		locked, _ := p.OnFailure(n, now)
		assert.False(t, locked, "count %d must not lock", n)
	}
	locked, until := p.OnFailure(5, now)
	assert.True(t, locked)
	assert.Equal(t, now.Add(15*time.Minute), until)

	// An overshot counter (concurrent failures) still locks.
	locked, _ = p.OnFailure(7, now)
	assert.True(t, locked)
}

func TestLockoutPolicyDisabled(t *testing.T) {
	locked, _ := LockoutPolicy{Threshold: 0}.OnFailure(100, time.Now())
	assert.False(t, locked, "zero threshold disables lockout")
}

func TestRemainingMinutesRoundsUp(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, RemainingMinutes(now, now))
	assert.Equal(t, 0, RemainingMinutes(now.Add(-time.Minute), now))
	assert.Equal(t, 1, RemainingMinutes(now.Add(time.Second), now))
	assert.Equal(t, 1, RemainingMinutes(now.Add(time.Minute), now))
	assert.Equal(t, 14, RemainingMinutes(now.Add(13*time.Minute+30*time.Second), now))
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Secret123!")
	assert.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)
	assert.True(t, h.Compare(hash, "Secret123!"))
	assert.False(t, h.Compare(hash, "secret123!"))
	assert.False(t, h.Compare("", "Secret123!"))
}

func TestBcryptHasherCostEncodedInHash(t *testing.T) {
	// Hashes made at one cost keep verifying after the cost is raised.
	old := NewBcryptHasher(bcrypt.MinCost)
	hash, err := old.Hash("Secret123!")
	assert.NoError(t, err)

	upgraded := NewBcryptHasher(bcrypt.MinCost + 1)
	assert.True(t, upgraded.Compare(hash, "Secret123!"))
}

func TestBcryptHasherClampsBadCost(t *testing.T) {
	h := NewBcryptHasher(99)
	assert.Equal(t, bcrypt.DefaultCost, h.Cost)
}
