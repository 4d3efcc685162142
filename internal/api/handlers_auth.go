package api

import (
	"encoding/json"
	"net/http"
)

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// handleLogin is form-encoded per spec §6 ("all JSON except the login
// form").
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	principal, ok := s.principals.byUsernameLookup(username)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := VerifyPassword(principal.PasswordHash, password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	access, err := s.tokens.IssueAccessToken(principal.ID, principal.Username, principal.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	refresh, err := s.tokens.IssueRefreshToken(principal.ID, principal.Username, principal.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

// handleRefresh exchanges a refresh token for a new access token (spec
// §6).
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := s.tokens.Verify(body.RefreshToken, "refresh")
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	principal, ok := s.principals.byIDLookup(claims.PrincipalID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown principal")
		return
	}

	access, err := s.tokens.IssueAccessToken(principal.ID, principal.Username, principal.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{AccessToken: access, TokenType: "bearer"})
}

// handleMe returns the authenticated principal (spec §6).
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no principal in context")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":       claims.PrincipalID,
		"username": claims.Username,
		"role":     claims.Role,
	})
}
