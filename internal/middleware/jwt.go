package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/haldane-systems/carecircle-server/internal/auth"
)

// Context keys populated by JWTAuth for downstream handlers.
const (
	CtxAccountID = "account_id" // uuid.UUID of the authenticated account
	CtxEmail     = "email"      // email claim from the access token
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the authenticated account ID and email into the request
// context. The token may arrive in the Authorization header or, for
// browser clients, in the access_token cookie. Protected routes should be
// wrapped with this so handlers can read `c.Get(middleware.CtxAccountID)`.
func JWTAuth(tokens *auth.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			claims, err := tokens.VerifyAccessToken(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxAccountID, claims.AccountID())
			c.Set(CtxEmail, claims.Email)
			return next(c)
		}
	}
}

// bearerToken extracts the access token from the Authorization header,
// falling back to the access_token cookie set at login.
func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := c.Cookie("access_token"); err == nil && ck.Value != "" {
		return ck.Value
	}
	return ""
}
