package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30, 7)

	token, err := issuer.IssueAccessToken("principal-1", "alice", "operator")
	require.NoError(t, err)

	claims, err := issuer.Verify(token, "access")
	require.NoError(t, err)
	require.Equal(t, "principal-1", claims.PrincipalID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "operator", claims.Role)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30, 7)

	access, err := issuer.IssueAccessToken("principal-1", "alice", "operator")
	require.NoError(t, err)

	_, err = issuer.Verify(access, "refresh")
	require.Error(t, err)
}

func TestVerifyRejectsTamperedSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret", 30, 7)
	other := NewTokenIssuer("different-secret", 30, 7)

	token, err := issuer.IssueAccessToken("principal-1", "alice", "operator")
	require.NoError(t, err)

	_, err = other.Verify(token, "access")
	require.Error(t, err)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	require.NoError(t, VerifyPassword(hash, "correct-horse-battery-staple"))
	require.Error(t, VerifyPassword(hash, "wrong-password"))
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	s := &Server{tokens: NewTokenIssuer("secret", 30, 7)}
	called := false
	handler := s.requireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	s := &Server{tokens: NewTokenIssuer("secret", 30, 7)}
	token, err := s.tokens.IssueAccessToken("principal-1", "alice", "operator")
	require.NoError(t, err)

	var gotClaims *Claims
	handler := s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotClaims = c
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "principal-1", gotClaims.PrincipalID)
}

func TestTokenFromQueryRequiresTokenParam(t *testing.T) {
	s := &Server{tokens: NewTokenIssuer("secret", 30, 7)}
	req := httptest.NewRequest(http.MethodGet, "/ws/operator", nil)
	_, err := s.tokenFromQuery(req)
	require.Error(t, err)
}

func TestTokenFromQueryAcceptsValidToken(t *testing.T) {
	s := &Server{tokens: NewTokenIssuer("secret", 30, 7)}
	token, err := s.tokens.IssueAccessToken("principal-1", "alice", "operator")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws/operator?token="+token, nil)
	claims, err := s.tokenFromQuery(req)
	require.NoError(t, err)
	require.Equal(t, "principal-1", claims.PrincipalID)
}
