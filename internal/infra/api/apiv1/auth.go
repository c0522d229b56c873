package apiv1

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pix-subscription/internal/domain"
)

// CheckTokens mints and verifies HS256 tokens binding a client to one transaction.
type CheckTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewCheckTokens(secret string, ttl time.Duration) *CheckTokens {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CheckTokens{secret: []byte(secret), ttl: ttl}
}

type checkClaims struct {
	jwt.RegisteredClaims
}

func (c *CheckTokens) Mint(transactionID string) (string, error) {
	now := time.Now()
	claims := checkClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   transactionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *CheckTokens) Verify(tok, transactionID string) error {
	claims := &checkClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return fmt.Errorf("check token: %w", domain.ErrUnauthorized)
	}
	if claims.Subject != transactionID {
		return fmt.Errorf("check token issued for another transaction: %w", domain.ErrUnauthorized)
	}
	return nil
}

// authorizeCheck passes when tokens are disabled or the bearer token matches transactionID.
func (s *Server) authorizeCheck(r *http.Request, transactionID string) error {
	if s.opts.Tokens == nil {
		return nil
	}
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return domain.ErrUnauthorized
	}
	return s.opts.Tokens.Verify(strings.TrimSpace(hdr[7:]), transactionID)
}
