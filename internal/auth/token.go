package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessToken is a signed JWT with its expiry. Verification is stateless:
// signature and expiry are enough, no session lookup required.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a long-lived opaque token. Raw goes to the client; only
// the SHA-256 hash of Raw is ever persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims are carried by access tokens: subject account id plus email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim as a UUID. VerifyAccessToken already
// checked it parses, so a zero UUID here means the claims were constructed
// by hand.
func (c *Claims) AccountID() uuid.UUID {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// TokenService issues and verifies access tokens and mints refresh tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: accessTTL}
}

// NewAccessToken builds and signs an HS256 JWT for an account.
func (s *TokenService) NewAccessToken(accountID uuid.UUID, email string) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates a JWT, returning its claims. The
// subject must be a well-formed account id.
func (s *TokenService) VerifyAccessToken(raw string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, newError(KindUnauthorized, "invalid token")
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, newError(KindUnauthorized, "invalid token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, newError(KindUnauthorized, "invalid token")
	}
	return claims, nil
}

// NewRefreshToken returns a high-entropy opaque token. 48 random bytes hex
// encoded; validity is stateful and lives on the session row.
func (s *TokenService) NewRefreshToken(ttl time.Duration) (RefreshToken, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf),
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// HashRefreshToken returns the SHA-256 hex digest stored in place of the
// raw token, so a leaked sessions table cannot be replayed.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
