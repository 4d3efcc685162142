package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newAuthTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := HashPassword("secret-pw")
	require.NoError(t, err)
	return &Server{
		tokens: NewTokenIssuer("test-secret", 30, 7),
		principals: newPrincipalStore([]PrincipalSeed{
			{ID: "p1", Username: "alice", PasswordHash: hash, Role: "operator"},
		}),
	}
}

func TestHandleLoginSuccess(t *testing.T) {
	s := newAuthTestServer(t)

	form := url.Values{"username": {"alice"}, "password": {"secret-pw"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.handleLogin(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body tokenPairResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.RefreshToken)
	require.Equal(t, "bearer", body.TokenType)
}

func TestHandleLoginWrongPassword(t *testing.T) {
	s := newAuthTestServer(t)

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.handleLogin(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLoginUnknownUsername(t *testing.T) {
	s := newAuthTestServer(t)

	form := url.Values{"username": {"nobody"}, "password": {"secret-pw"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	s.handleLogin(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRefreshIssuesNewAccessToken(t *testing.T) {
	s := newAuthTestServer(t)
	refresh, err := s.tokens.IssueRefreshToken("p1", "alice", "operator")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": refresh})
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleRefresh(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenPairResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
}

func TestHandleRefreshRejectsAccessToken(t *testing.T) {
	s := newAuthTestServer(t)
	access, err := s.tokens.IssueAccessToken("p1", "alice", "operator")
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": access})
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleRefresh(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMeReturnsAuthenticatedPrincipal(t *testing.T) {
	s := newAuthTestServer(t)
	claims := &Claims{PrincipalID: "p1", Username: "alice", Role: "operator"}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(withClaims(req.Context(), claims))
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "alice", body["username"])
}
