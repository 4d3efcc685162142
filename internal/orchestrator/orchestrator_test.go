package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dialerctl/internal/domain"
	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/repository"
	"dialerctl/internal/telephony"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *repository.Memory, *telephony.Mock, *operator.Manager) {
	t.Helper()
	repo := repository.NewMemory()
	phone := telephony.NewMock()
	phone.CallAnswerDelay = 5 * time.Millisecond
	phone.AMDDetectionDelay = 5 * time.Millisecond
	ops := operator.NewManager(0)
	hub := eventbus.NewHub()
	orch := New(repo, phone, ops, hub, DefaultRatioConfig(), "+15550000000")
	return orch, repo, phone, ops
}

func TestComputeRetryDelayMonotonicallyIncreasesAndCaps(t *testing.T) {
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := computeRetryDelay(i)
		require.GreaterOrEqual(t, d, prev)
		require.LessOrEqual(t, d, RetryMaxDelay)
		prev = d
	}
	require.Equal(t, RetryBaseDelay, computeRetryDelay(0))
	require.Equal(t, RetryMaxDelay, computeRetryDelay(9))
}

func TestHandleAMDHumanConnectsAndAssignsOperator(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, ops := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	sess := operator.NewSession("op-1", "Alice")
	sess.GoOnline()
	ops.AddOperator(sess)

	result, err := phone.MakeCall(ctx, lead.Phone, "+15550000000", "", false)
	require.NoError(t, err)
	require.NoError(t, lead.StartCalling())

	orch.callsMu.Lock()
	orch.calls[result.CallID] = &callBinding{LeadID: lead.ID, CampaignID: c.ID}
	orch.callsMu.Unlock()

	require.NoError(t, orch.HandleAMD(ctx, result.CallID, telephony.AMDHuman))
	require.Equal(t, domain.LeadConnected, lead.CurrentState())
	require.Equal(t, operator.StatusOnCall, sess.Status())
}

func TestHandleAMDHumanWithNoOperatorAbandons(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, _ := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	result, err := phone.MakeCall(ctx, lead.Phone, "+15550000000", "", false)
	require.NoError(t, err)
	require.NoError(t, lead.StartCalling())

	orch.callsMu.Lock()
	orch.calls[result.CallID] = &callBinding{LeadID: lead.ID, CampaignID: c.ID}
	orch.callsMu.Unlock()

	require.NoError(t, orch.HandleAMD(ctx, result.CallID, telephony.AMDHuman))
	require.Equal(t, domain.LeadFailed, lead.CurrentState())
	require.Equal(t, "abandoned", lead.FailReason)
	require.Equal(t, 1, c.AbandonedLeads)
}

func TestHandleAMDMachineFailsLeadAsMachine(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, _ := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	result, err := phone.MakeCall(ctx, lead.Phone, "+15550000000", "", false)
	require.NoError(t, err)
	require.NoError(t, lead.StartCalling())

	orch.callsMu.Lock()
	orch.calls[result.CallID] = &callBinding{LeadID: lead.ID, CampaignID: c.ID}
	orch.callsMu.Unlock()

	require.NoError(t, orch.HandleAMD(ctx, result.CallID, telephony.AMDMachineStart))
	require.Equal(t, domain.LeadFailed, lead.CurrentState())
	require.Equal(t, "machine", lead.FailReason)
}

func TestHandleAMDUnknownCallReturnsNotFound(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator(t)
	err := orch.HandleAMD(context.Background(), "missing", telephony.AMDHuman)
	require.Error(t, err)
}

func TestHandleCallCompletedMarksConnectedLeadComplete(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, ops := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	sess := operator.NewSession("op-1", "Alice")
	sess.GoOnline()
	ops.AddOperator(sess)

	result, err := phone.MakeCall(ctx, lead.Phone, "+15550000000", "", false)
	require.NoError(t, err)
	require.NoError(t, lead.StartCalling())

	orch.callsMu.Lock()
	orch.calls[result.CallID] = &callBinding{LeadID: lead.ID, CampaignID: c.ID}
	orch.callsMu.Unlock()

	require.NoError(t, orch.HandleAMD(ctx, result.CallID, telephony.AMDHuman))
	require.NoError(t, orch.HandleCallCompleted(ctx, result.CallID, telephony.StatusCompleted))
	require.Equal(t, domain.LeadCompleted, lead.CurrentState())
}

func TestHandleCallCompletedFailsCallingLeadOnBusy(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, _ := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	result, err := phone.MakeCall(ctx, lead.Phone, "+15550000000", "", false)
	require.NoError(t, err)
	require.NoError(t, lead.StartCalling())

	orch.callsMu.Lock()
	orch.calls[result.CallID] = &callBinding{LeadID: lead.ID, CampaignID: c.ID}
	orch.callsMu.Unlock()

	require.NoError(t, orch.HandleCallCompleted(ctx, result.CallID, telephony.StatusBusy))
	require.Equal(t, domain.LeadFailed, lead.CurrentState())
	require.Equal(t, "busy", lead.FailReason)
}

func TestTickLaunchesCallsForAvailableOperators(t *testing.T) {
	ctx := context.Background()
	orch, repo, _, ops := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	_, err = c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	sess := operator.NewSession("op-1", "Alice")
	sess.GoOnline()
	ops.AddOperator(sess)

	require.NoError(t, orch.tick(ctx, c.ID))

	stats := domain.ComputeStats(c)
	require.Equal(t, 1, stats.Calling)
}

func TestTickNoOpWhenCampaignNotRunning(t *testing.T) {
	ctx := context.Background()
	orch, repo, _, ops := newTestOrchestrator(t)

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	_, err = c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, repo.CreateCampaign(ctx, c))

	sess := operator.NewSession("op-1", "Alice")
	sess.GoOnline()
	ops.AddOperator(sess)

	require.NoError(t, orch.tick(ctx, c.ID))

	stats := domain.ComputeStats(c)
	require.Equal(t, 0, stats.Calling)
}

func TestLaunchFailsLeadWithAMDTimeoutWhenNoCallbackArrives(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, _ := newTestOrchestrator(t)
	orch.amdTimeout = 10 * time.Millisecond
	phone.AMDDetectionDelay = time.Hour // never fires on its own during the test

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	orch.launch(ctx, c, lead)

	require.Eventually(t, func() bool {
		return lead.CurrentState() == domain.LeadFailed
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "amd_timeout", lead.FailReason)

	orch.callsMu.Lock()
	remaining := len(orch.calls)
	orch.callsMu.Unlock()
	require.Equal(t, 0, remaining)
}

func TestHandleAMDBeforeTimeoutPreventsAMDTimeoutFromFiring(t *testing.T) {
	ctx := context.Background()
	orch, repo, phone, ops := newTestOrchestrator(t)
	orch.amdTimeout = 20 * time.Millisecond
	phone.AMDDetectionDelay = time.Hour

	c, err := domain.NewCampaign("test", 3)
	require.NoError(t, err)
	lead, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, repo.CreateCampaign(ctx, c))

	sess := operator.NewSession("op-1", "Alice")
	sess.GoOnline()
	ops.AddOperator(sess)

	orch.launch(ctx, c, lead)

	var callID string
	orch.callsMu.Lock()
	for id := range orch.calls {
		callID = id
	}
	orch.callsMu.Unlock()
	require.NotEmpty(t, callID)

	require.NoError(t, orch.HandleAMD(ctx, callID, telephony.AMDHuman))
	require.Equal(t, domain.LeadConnected, lead.CurrentState())

	// Give the armed timer a chance to fire if it wasn't stopped; the
	// lead must still be CONNECTED, not FAILED with amd_timeout.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, domain.LeadConnected, lead.CurrentState())
}

func TestStartStopCampaignIdempotent(t *testing.T) {
	orch, _, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	orch.StartCampaign(ctx, "c1")
	orch.StartCampaign(ctx, "c1") // second call is a no-op
	require.Len(t, orch.running, 1)

	orch.StopCampaign("c1")
	require.Len(t, orch.running, 0)
	orch.StopCampaign("c1") // stopping twice is a no-op
}
