package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/orchestrator"
	"dialerctl/internal/repository"
	"dialerctl/internal/telephony"
)

func newWSTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	repo := repository.NewMemory()
	phone := telephony.NewMock()
	ops := operator.NewManager(0)
	hub := eventbus.NewHub()
	orch := orchestrator.New(repo, phone, ops, hub, orchestrator.DefaultRatioConfig(), "+15550000000")
	s := &Server{
		repo:   repo,
		phone:  phone,
		ops:    ops,
		orch:   orch,
		hub:    hub,
		tokens: NewTokenIssuer("test-secret", 30, 7),
	}
	s.registerActionHandler()
	go hub.Run()

	srv := httptest.NewServer(s.Handler())
	return s, srv
}

func TestHandleWSOperatorUpgradesAndRegistersOperator(t *testing.T) {
	s, srv := newWSTestServer(t)
	defer srv.Close()

	token, err := s.tokens.IssueAccessToken("op-1", "alice", "operator")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/operator?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.ops.GetOperator("op-1") != nil
	}, time.Second, 10*time.Millisecond)
}

func TestHandleWSOperatorRejectsMissingToken(t *testing.T) {
	_, srv := newWSTestServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/operator"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}

func TestHandleWSDashboardUpgrades(t *testing.T) {
	s, srv := newWSTestServer(t)
	defer srv.Close()

	token, err := s.tokens.IssueAccessToken("sup-1", "sue", "supervisor")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)
}
