package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/haldane-systems/carecircle-server/internal/auth"
	"github.com/haldane-systems/carecircle-server/internal/config"
	"github.com/haldane-systems/carecircle-server/internal/handler"
	"github.com/haldane-systems/carecircle-server/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used by
// load balancers and monitoring systems to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the whole auth surface.  Unauthenticated flows live
// under /v1/auth behind the token-bucket rate limiter; endpoints that act on
// an authenticated account live under /v1 behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *auth.TokenService, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	// Public flows. Each of these is a target for credential stuffing or
	// enumeration probing, so the limiter fronts the whole group.
	g := e.Group("/v1/auth", middleware.NewTokenBucket(rlCfg, rdb))
	g.POST("/register", a.Register)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	// Logout stays public: it authenticates by the refresh token itself and
	// is idempotent, so a client with an expired access token can still end
	// its session.
	g.POST("/logout", a.Logout)

	// Routes that require a valid access token.
	protected := e.Group("/v1")
	protected.Use(middleware.JWTAuth(tokens))
	protected.POST("/auth/logout-all", a.LogoutAll)
	protected.POST("/auth/change-password", a.ChangePassword)
	protected.GET("/me", a.Me)
	protected.GET("/sessions", a.Sessions)
}
