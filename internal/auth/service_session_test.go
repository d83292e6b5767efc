package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldane-systems/carecircle-server/internal/model"
)

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)
	oldToken := res.Refresh.Raw

	rotated, err := env.svc.Refresh(ctx, oldToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.Access.Token)
	assert.NotEqual(t, oldToken, rotated.Refresh.Raw)

	// The old refresh token is dead after rotation.
	_, err = env.svc.Refresh(ctx, oldToken)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	// The new one succeeds exactly once before its own rotation.
	again, err := env.svc.Refresh(ctx, rotated.Refresh.Raw)
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, rotated.Refresh.Raw)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = env.svc.Refresh(ctx, again.Refresh.Raw)
	require.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Refresh(context.Background(), "not-a-real-token")
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestRefreshInactiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	require.NoError(t, env.svc.Logout(ctx, res.Refresh.Raw))
	_, err := env.svc.Refresh(ctx, res.Refresh.Raw)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestRefreshExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	env.advance(8 * 24 * time.Hour) // past the 7-day refresh window
	_, err := env.svc.Refresh(ctx, res.Refresh.Raw)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestRefreshSuspendedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	acc := env.accounts.get(t, "alice@example.com")
	acc.Status = model.AccountSuspended

	_, err := env.svc.Refresh(ctx, res.Refresh.Raw)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

// Two concurrent refreshes using the same token: exactly one wins.
func TestRefreshConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Refresh(ctx, res.Refresh.Raw)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, KindUnauthorized, KindOf(err))
		}
	}
	assert.Equal(t, 1, wins, "the stale token must be accepted exactly once")
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	require.NoError(t, env.svc.Logout(ctx, res.Refresh.Raw))
	// Logging out again, or with a token nobody ever issued, is fine.
	require.NoError(t, env.svc.Logout(ctx, res.Refresh.Raw))
	require.NoError(t, env.svc.Logout(ctx, "unknown-token"))
	require.NoError(t, env.svc.Logout(ctx, ""))
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.register(t, "alice@example.com", "Secret123!", true)
	second, err := env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123!"})
	require.NoError(t, err)

	require.NoError(t, env.svc.LogoutAll(ctx, first.Account.ID))

	for _, token := range []string{first.Refresh.Raw, second.Refresh.Raw} {
		_, err := env.svc.Refresh(ctx, token)
		assert.Equal(t, KindUnauthorized, KindOf(err))
	}
	list, err := env.svc.ListSessions(ctx, first.Account.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
