package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetTokenFromMail pulls the raw reset token out of the latest mail.
func (e *testEnv) resetTokenFromMail(t *testing.T) string {
	t.Helper()
	body := e.mail.last(t).Body
	_, rest, found := strings.Cut(body, "reset your password: ")
	require.True(t, found, "unexpected reset mail body: %q", body)
	token, _, found := strings.Cut(rest, ".")
	require.True(t, found)
	return token
}

func TestForgotPasswordEnumerationResistant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "known@example.com", "Secret123!", true)

	known, err := env.svc.ForgotPassword(ctx, "known@example.com")
	require.NoError(t, err)
	unknown, err := env.svc.ForgotPassword(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown, "responses must be byte-identical")
}

func TestForgotPasswordStoresHashOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice@example.com", "Secret123!", true)

	_, err := env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)

	raw := env.resetTokenFromMail(t)
	acc := env.accounts.get(t, "alice@example.com")
	require.NotNil(t, acc.ResetTokenHash)
	assert.NotEqual(t, raw, *acc.ResetTokenHash, "raw token must never be persisted")
	assert.Equal(t, HashRefreshToken(raw), *acc.ResetTokenHash)
	require.NotNil(t, acc.ResetExpiresAt)
	assert.Equal(t, env.clock.Add(time.Hour), *acc.ResetExpiresAt)
}

func TestForgotPasswordSwallowsMailFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice@example.com", "Secret123!", true)
	env.mail.fail = true

	msg, err := env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err, "delivery failure must not surface")
	assert.Equal(t, MsgResetRequested, msg)
}

func TestResetPasswordInvalidatesAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.register(t, "alice@example.com", "Secret123!", true)
	second, err := env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123!"})
	require.NoError(t, err)

	_, err = env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = env.svc.ResetPassword(ctx, env.resetTokenFromMail(t), "NewSecret456!")
	require.NoError(t, err)

	// Every previously-valid refresh token is dead.
	for _, token := range []string{first.Refresh.Raw, second.Refresh.Raw} {
		_, err := env.svc.Refresh(ctx, token)
		assert.Equal(t, KindUnauthorized, KindOf(err))
	}

	// Old credential fails, new one works.
	_, err = env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123!"})
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "NewSecret456!"})
	require.NoError(t, err)

	acc := env.accounts.get(t, "alice@example.com")
	require.NotNil(t, acc.PasswordChangedAt)
	assert.Nil(t, acc.ResetTokenHash, "reset token is single-use")
}

func TestResetPasswordBadToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice@example.com", "Secret123!", true)

	_, err := env.svc.ResetPassword(ctx, "bogus-token", "NewSecret456!")
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice@example.com", "Secret123!", true)

	_, err := env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	token := env.resetTokenFromMail(t)

	env.advance(61 * time.Minute)
	_, err = env.svc.ResetPassword(ctx, token, "NewSecret456!")
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestResetPasswordSupersededToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice@example.com", "Secret123!", true)

	_, err := env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	first := env.resetTokenFromMail(t)

	_, err = env.svc.ForgotPassword(ctx, "alice@example.com")
	require.NoError(t, err)
	second := env.resetTokenFromMail(t)

	// The newer request replaced the stored hash; the first token is dead.
	_, err = env.svc.ResetPassword(ctx, first, "NewSecret456!")
	assert.Equal(t, KindBadRequest, KindOf(err))
	_, err = env.svc.ResetPassword(ctx, second, "NewSecret456!")
	require.NoError(t, err)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "alice@example.com", "Secret123!", true)

	err := env.svc.ChangePassword(ctx, res.Account.ID, res.Session.ID, "wrong", "NewSecret456!")
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	current := env.register(t, "alice@example.com", "Secret123!", true)
	other, err := env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "Secret123!"})
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, current.Account.ID, current.Session.ID, "Secret123!", "NewSecret456!")
	require.NoError(t, err)

	// The acting session survives; every other one is invalidated.
	_, err = env.svc.Refresh(ctx, current.Refresh.Raw)
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, other.Refresh.Raw)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	_, err = env.svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "NewSecret456!"})
	require.NoError(t, err)
}

func TestChangePasswordUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.ChangePassword(context.Background(), uuid.New(), uuid.Nil, "x", "y")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}
