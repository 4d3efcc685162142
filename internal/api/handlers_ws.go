package api

import (
	"net/http"

	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
)

// handleWSOperator upgrades to the operator-role duplex channel (spec
// §6 /ws/operator). The token in the query parameter is resolved
// before the upgrade; if that fails the request is answered with HTTP
// 401, no websocket is opened and no 4001 close frame is sent.
func (s *Server) handleWSOperator(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokenFromQuery(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.hub.Accept(w, r, eventbus.RoleOperator, claims.PrincipalID); err != nil {
		return
	}
	if op := s.ops.GetOperator(claims.PrincipalID); op == nil {
		s.ops.AddOperator(operator.NewSession(claims.PrincipalID, claims.Username))
	}
}

// handleWSDashboard upgrades to the supervisor-role duplex channel
// (spec §6 /ws/dashboard).
func (s *Server) handleWSDashboard(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokenFromQuery(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	_, _ = s.hub.Accept(w, r, eventbus.RoleSupervisor, claims.PrincipalID)
}
