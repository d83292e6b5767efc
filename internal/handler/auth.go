package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/haldane-systems/carecircle-server/internal/auth"
	"github.com/haldane-systems/carecircle-server/internal/middleware"
	"github.com/haldane-systems/carecircle-server/internal/model"
)

// AuthHandler exposes the auth core over HTTP. Each handler binds a DTO,
// delegates to one Service method and translates the typed flow error into
// a status code. Tokens are echoed in the JSON body and mirrored into
// httpOnly cookies for browser clients.
type AuthHandler struct {
	Svc *auth.Service
	// SecureCookies marks auth cookies Secure; off in local development
	// where the server runs without TLS.
	SecureCookies bool
}

func NewAuthHandler(svc *auth.Service, secureCookies bool) *AuthHandler {
	return &AuthHandler{Svc: svc, SecureCookies: secureCookies}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}
type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type emailReq struct {
	Email string `json:"email"`
}
type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type resetPasswordReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type accountPart struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Status        string     `json:"status"`
	EmailVerified bool       `json:"email_verified"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"` // raw back to client
}
type sessionPart struct {
	ID         uuid.UUID `json:"id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	DeviceInfo string    `json:"device_info,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

const minPasswordLen = 8

// Register: create a PENDING account and dispatch the verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	if len(req.Password) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	msg, err := h.Svc.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg})
}

// VerifyEmail: confirm the OTP; on success the account is activated and
// logged in, so the response carries a full token pair.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/code required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	res, err := h.Svc.VerifyEmail(ctx, req.Email, strings.TrimSpace(req.Code), c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return writeErr(c, err)
	}
	h.setAuthCookies(c, res.Access, res.Refresh)
	return c.JSON(http.StatusOK, loginResponse(res))
}

// ResendVerification: issue a fresh code. The unknown-email response is
// indistinguishable from success.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	msg, err := h.Svc.ResendVerification(ctx, req.Email)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	res, err := h.Svc.Login(ctx, auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		IP:         c.RealIP(),
		DeviceInfo: c.Request().UserAgent(),
	})
	if err != nil {
		return writeErr(c, err)
	}
	h.setAuthCookies(c, res.Access, res.Refresh)
	return c.JSON(http.StatusOK, loginResponse(res))
}

// Refresh: rotate the refresh token and mint a new access token. The token
// is taken from the body, falling back to the refresh_token cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshToken(c)
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	res, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		return writeErr(c, err)
	}
	h.setAuthCookies(c, res.Access, res.Refresh)
	return c.JSON(http.StatusOK, echo.Map{
		"access":  tokenPart{Token: res.Access.Token, Expires: res.Access.Exp},
		"refresh": tokenPart{Token: res.Refresh.Raw, Expires: res.Refresh.Exp},
	})
}

// ForgotPassword: start a reset. Always the same generic message.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	msg, err := h.Svc.ForgotPassword(ctx, req.Email)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// ResetPassword: complete a reset with the mailed token. All sessions of
// the account die, so the cookies are cleared too.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Token) == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/new_password required"})
	}
	if len(req.NewPassword) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	msg, err := h.Svc.ResetPassword(ctx, strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		return writeErr(c, err)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// Logout: invalidate the session behind the supplied refresh token.
// Idempotent; succeeds even when the token is unknown or already dead.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, h.refreshToken(c)); err != nil {
		return writeErr(c, err)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": auth.MsgLoggedOut})
}

// LogoutAll: invalidate every session of the authenticated account.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	accID, ok := accountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.LogoutAll(ctx, accID); err != nil {
		return writeErr(c, err)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": auth.MsgLoggedOut})
}

// ChangePassword: rotate the credential of the authenticated account. The
// acting session (resolved from the refresh cookie) survives; every other
// session is invalidated.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	accID, ok := accountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password/new_password required"})
	}
	if len(req.NewPassword) < minPasswordLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	current := h.Svc.CurrentSessionID(ctx, h.refreshToken(c))
	if err := h.Svc.ChangePassword(ctx, accID, current, req.CurrentPassword, req.NewPassword); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed."})
}

// Me: echo the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	accID, ok := accountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	acc, err := h.Svc.GetAccount(ctx, accID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"account": accountView(acc)})
}

// Sessions: device overview listing the caller's live sessions. The one
// matching the caller's refresh cookie is flagged current.
func (h *AuthHandler) Sessions(c echo.Context) error {
	accID, ok := accountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	sessions, err := h.Svc.ListSessions(ctx, accID)
	if err != nil {
		return writeErr(c, err)
	}

	currentHash := ""
	if raw := h.refreshToken(c); raw != "" {
		currentHash = auth.HashRefreshToken(raw)
	}
	parts := make([]sessionPart, 0, len(sessions))
	for _, s := range sessions {
		parts = append(parts, sessionPart{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			DeviceInfo: s.DeviceInfo,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
			Current:    currentHash != "" && s.RefreshTokenHash == currentHash,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": parts})
}

// ----- helpers -----

func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// accountID pulls the authenticated account id stored by the JWT middleware.
func accountID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(middleware.CtxAccountID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// refreshToken takes the refresh token from the JSON body when present,
// otherwise from the refresh_token cookie.
func (h *AuthHandler) refreshToken(c echo.Context) string {
	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		return raw
	}
	if ck, err := c.Cookie("refresh_token"); err == nil {
		return ck.Value
	}
	return ""
}

// writeErr maps a typed flow error onto its status code; anything untyped
// is an internal failure, logged and masked as a 500.
func writeErr(c echo.Context, err error) error {
	switch auth.KindOf(err) {
	case auth.KindConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case auth.KindUnauthorized:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case auth.KindForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case auth.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case auth.KindBadRequest:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		log.Printf("handler: internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func loginResponse(res *auth.LoginResult) authResp {
	return authResp{
		Account: accountView(res.Account),
		Access:  tokenPart{Token: res.Access.Token, Expires: res.Access.Exp},
		Refresh: tokenPart{Token: res.Refresh.Raw, Expires: res.Refresh.Exp},
	}
}

func accountView(acc *model.Account) accountPart {
	return accountPart{
		ID:            acc.ID,
		Email:         acc.Email,
		FullName:      acc.FullName,
		Status:        string(acc.Status),
		EmailVerified: acc.EmailVerified,
		LastLoginAt:   acc.LastLoginAt,
		CreatedAt:     acc.CreatedAt,
	}
}

func (h *AuthHandler) setAuthCookies(c echo.Context, access auth.AccessToken, refresh auth.RefreshToken) {
	c.SetCookie(authCookie("access_token", access.Token, access.Exp, h.SecureCookies))
	c.SetCookie(authCookie("refresh_token", refresh.Raw, refresh.Exp, h.SecureCookies))
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	expired := time.Now().Add(-time.Hour)
	c.SetCookie(authCookie("access_token", "", expired, h.SecureCookies))
	c.SetCookie(authCookie("refresh_token", "", expired, h.SecureCookies))
}

func authCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
