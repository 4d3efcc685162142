package api

import (
	"context"

	"dialerctl/internal/domain"
	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/repository"
)

// wsActionHandler implements eventbus.ActionHandler, translating
// operator-channel client actions (spec §4.H) into Operator Manager
// and Repository calls.
type wsActionHandler struct {
	ops  *operator.Manager
	hub  *eventbus.Hub
	repo repository.Port
}

func (s *Server) registerActionHandler() {
	s.hub.SetActionHandler(&wsActionHandler{ops: s.ops, hub: s.hub, repo: s.repo})
}

func (h *wsActionHandler) OnSetStatus(principalID, status string) {
	op := h.ops.GetOperator(principalID)
	if op == nil {
		return
	}
	switch status {
	case "available":
		op.GoOnline()
	case "offline":
		op.GoOffline()
	case "on_break":
		op.GoOnBreak()
	case "wrap_up":
		op.StartWrapUp()
	}
	h.hub.SendToOperatorAndSupervisors(principalID, eventbus.EventOperatorStatusChanged, op.Snapshot())
}

func (h *wsActionHandler) OnAcceptCall(principalID, callID, leadID string) {
	op := h.ops.GetOperator(principalID)
	if op == nil {
		return
	}
	if err := op.StartCall(callID, leadID); err != nil {
		return
	}
	h.hub.SendToOperatorAndSupervisors(principalID, eventbus.EventOperatorStatusChanged, op.Snapshot())
}

func (h *wsActionHandler) OnEndCall(principalID, _ string) {
	if h.ops.EndCall(principalID) {
		if op := h.ops.GetOperator(principalID); op != nil {
			h.hub.SendToOperatorAndSupervisors(principalID, eventbus.EventOperatorStatusChanged, op.Snapshot())
		}
	}
}

func (h *wsActionHandler) OnGetOperators(principalID string) {
	snapshots := make([]operator.Snapshot, 0, len(h.ops.AllOperators()))
	for _, op := range h.ops.AllOperators() {
		snapshots = append(snapshots, op.Snapshot())
	}
	h.hub.SendToOperator(principalID, eventbus.EventOperatorListUpdated, snapshots)
}

func (h *wsActionHandler) OnRefreshStats(principalID, campaignID string) {
	c, err := h.repo.GetCampaign(context.Background(), campaignID)
	if err != nil {
		return
	}
	stats := domain.ComputeStats(c)
	h.hub.SendToOperator(principalID, eventbus.EventCampaignStatsUpdated, stats)
}
