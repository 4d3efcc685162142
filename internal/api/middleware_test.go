package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"dialerctl/pkg/logging"
)

func TestAllowOriginEmptyAllowlistAllowsAll(t *testing.T) {
	s := &Server{}
	require.True(t, s.allowOrigin("https://anywhere.example"))
}

func TestAllowOriginWildcard(t *testing.T) {
	s := &Server{corsOrigins: []string{"*"}}
	require.True(t, s.allowOrigin("https://anywhere.example"))
}

func TestAllowOriginExplicitList(t *testing.T) {
	s := &Server{corsOrigins: []string{"https://allowed.example"}}
	require.True(t, s.allowOrigin("https://allowed.example"))
	require.False(t, s.allowOrigin("https://other.example"))
}

func TestCORSMiddlewareSetsHeadersAndHandlesOptions(t *testing.T) {
	s := &Server{corsOrigins: []string{"https://allowed.example"}}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := s.corsMiddleware(inner)

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewarePassesThroughNonOptions(t *testing.T) {
	s := &Server{corsOrigins: []string{"https://allowed.example"}}
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := s.corsMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, called)
}

func TestRecoverMiddlewareTurnsPanicInto500(t *testing.T) {
	s := &Server{log: logging.Get("test")}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := s.recoverMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
