package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haldane-systems/carecircle-server/internal/auth"
)

func invoke(t *testing.T, mw echo.MiddlewareFunc, mutate func(*http.Request)) (echo.Context, *httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	return c, rec, called
}

func TestJWTAuthAcceptsBearerToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)
	id := uuid.New()
	tok, err := tokens.NewAccessToken(id, "rosa@example.com")
	require.NoError(t, err)

	c, rec, called := invoke(t, JWTAuth(tokens), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok.Token)
	})

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, c.Get(CtxAccountID))
	assert.Equal(t, "rosa@example.com", c.Get(CtxEmail))
}

func TestJWTAuthAcceptsCookie(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)
	tok, err := tokens.NewAccessToken(uuid.New(), "rosa@example.com")
	require.NoError(t, err)

	_, rec, called := invoke(t, JWTAuth(tokens), func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: tok.Token})
	})

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)

	_, rec, called := invoke(t, JWTAuth(tokens), func(*http.Request) {})

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsForgedToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Minute)
	other := auth.NewTokenService("other-secret", time.Minute)
	tok, err := other.NewAccessToken(uuid.New(), "mallory@example.com")
	require.NoError(t, err)

	_, rec, called := invoke(t, JWTAuth(tokens), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok.Token)
	})

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
