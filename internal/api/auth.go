// Package api is the thin Public API façade (spec §4.I): authenticate,
// call the core, translate errors into HTTP codes. Grounded on the
// teacher's internal/auth/jwt.go (Claims shape, bcrypt cost, Bearer
// parsing) and internal/api/server.go (stdlib ServeMux routing,
// protected-vs-public split), extended with refresh-token support the
// teacher never had.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload for both access and refresh tokens,
// distinguished by TokenType.
type Claims struct {
	PrincipalID string `json:"sub"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	TokenType   string `json:"token_type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies access/refresh token pairs (spec §6:
// /auth/login returns {access_token, refresh_token, token_type:"bearer"}).
type TokenIssuer struct {
	secret               []byte
	accessExpireMinutes  int
	refreshExpireDays    int
}

func NewTokenIssuer(secret string, accessExpireMinutes, refreshExpireDays int) *TokenIssuer {
	return &TokenIssuer{
		secret:              []byte(secret),
		accessExpireMinutes: accessExpireMinutes,
		refreshExpireDays:   refreshExpireDays,
	}
}

func (t *TokenIssuer) IssueAccessToken(principalID, username, role string) (string, error) {
	return t.issue(principalID, username, role, "access", time.Duration(t.accessExpireMinutes)*time.Minute)
}

func (t *TokenIssuer) IssueRefreshToken(principalID, username, role string) (string, error) {
	return t.issue(principalID, username, role, "refresh", time.Duration(t.refreshExpireDays)*24*time.Hour)
}

func (t *TokenIssuer) issue(principalID, username, role, tokenType string, ttl time.Duration) (string, error) {
	claims := &Claims{
		PrincipalID: principalID,
		Username:    username,
		Role:        role,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Issuer:    "dialerctl",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a token, requiring it match wantType
// ("access" or "refresh").
func (t *TokenIssuer) Verify(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, errors.New("unexpected token type")
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

type ctxKey string

const claimsKey ctxKey = "claims"

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext retrieves the authenticated principal's claims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// requireAuth wraps a handler, rejecting requests without a valid
// Bearer access token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		claims, err := s.tokens.Verify(parts[1], "access")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// tokenFromQuery resolves a websocket connection's auth token from its
// query parameter (spec §4.H: "the client presents a token in a query
// parameter").
func (s *Server) tokenFromQuery(r *http.Request) (*Claims, error) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		return nil, errors.New("missing token")
	}
	return s.tokens.Verify(tok, "access")
}
