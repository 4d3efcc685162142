package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dialerctl/internal/domain"
	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/repository"
	"dialerctl/internal/telephony"
	"dialerctl/pkg/apperrors"
	"dialerctl/pkg/logging"
)

// DefaultTickInterval is the per-campaign control loop period (spec §5
// recommends 500ms-1s).
const DefaultTickInterval = time.Second

// DefaultAMDTimeout is the logical per-call timeout before the
// orchestrator hangs up and fails a lead with reason amd_timeout.
const DefaultAMDTimeout = 30 * time.Second

// RetryBaseDelay and RetryMaxDelay implement the suggested exponential
// backoff from spec §4.F / §9 open question 2: 60s * 2^retry_count,
// capped at 600s, no jitter (chosen because the spec explicitly leaves
// the scheme implementer-defined and this is the suggested default).
const (
	RetryBaseDelay = 60 * time.Second
	RetryMaxDelay  = 600 * time.Second
)

// computeRetryDelay returns the backoff before a FAILED lead at
// retryCount (its value *before* Retry() increments it) is re-admitted
// to PENDING.
func computeRetryDelay(retryCount int) time.Duration {
	delay := RetryBaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= RetryMaxDelay {
			return RetryMaxDelay
		}
	}
	return delay
}

// callBinding remembers which lead and campaign a telephony call_id maps
// to, since AMD/status callbacks arrive keyed by call_id alone. Timer
// is the armed amd_timeout watchdog for this call; it is stopped (but
// the binding kept, since HandleCallCompleted still needs it) once the
// call connects, and cleared entirely once the call reaches a terminal
// outcome.
type callBinding struct {
	LeadID     string
	CampaignID string
	Connected  bool
	Timer      *time.Timer
}

// Orchestrator drives the per-campaign control loop described in spec
// §4.F, grounded on the platform's campaign/sweeper.go Start/Stop
// running-flag + WaitGroup shape, with the control law itself ported
// from original_source's DialerOrchestrator.
type Orchestrator struct {
	repo   repository.Port
	phone  telephony.Port
	ops    *operator.Manager
	hub    *eventbus.Hub
	ratio  RatioConfig

	callerID         string
	amdTimeout       time.Duration
	tickInterval     time.Duration

	mu        sync.Mutex
	running   map[string]chan struct{} // campaignID -> stop channel
	wg        sync.WaitGroup

	callsMu sync.Mutex
	calls   map[string]*callBinding // call_id -> binding

	log *logrus.Entry
}

// New constructs an Orchestrator. callerID is the from-number used for
// outbound launches.
func New(repo repository.Port, phone telephony.Port, ops *operator.Manager, hub *eventbus.Hub, ratio RatioConfig, callerID string) *Orchestrator {
	o := &Orchestrator{
		repo:         repo,
		phone:        phone,
		ops:          ops,
		hub:          hub,
		ratio:        ratio,
		callerID:     callerID,
		amdTimeout:   DefaultAMDTimeout,
		tickInterval: DefaultTickInterval,
		running:      make(map[string]chan struct{}),
		calls:        make(map[string]*callBinding),
		log:          logging.Get("orchestrator"),
	}
	return o
}

// StartCampaign launches a per-campaign tick goroutine. A second call
// for the same campaign id is a no-op, matching the idempotent
// start/stop shape of the platform's Sweeper.
func (o *Orchestrator) StartCampaign(ctx context.Context, campaignID string) {
	o.mu.Lock()
	if _, exists := o.running[campaignID]; exists {
		o.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	o.running[campaignID] = stop
	o.mu.Unlock()

	o.wg.Add(1)
	go o.tickLoop(ctx, campaignID, stop)
}

// StopCampaign cancels that campaign's tick loop; in-flight launches
// are allowed to complete (spec §5 cancellation semantics).
func (o *Orchestrator) StopCampaign(campaignID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stop, ok := o.running[campaignID]; ok {
		close(stop)
		delete(o.running, campaignID)
	}
}

func (o *Orchestrator) tickLoop(ctx context.Context, campaignID string, stop chan struct{}) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := o.tick(ctx, campaignID); err != nil {
				o.log.WithError(err).WithField("campaign_id", campaignID).Warn("tick failed")
			}
		}
	}
}

// tick executes one control-loop iteration (spec §4.F steps 1-5).
func (o *Orchestrator) tick(ctx context.Context, campaignID string) error {
	campaign, err := o.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.CurrentState() != domain.CampaignRunning {
		return nil
	}

	stats := domain.ComputeStats(campaign)
	if o.ratio.ShouldPauseDialing(stats) {
		o.publishStats(campaignID, stats)
		return nil
	}

	availableOperators := o.ops.AvailableCount()
	pendingCalls := stats.Calling

	dialRatio := o.ratio.CalculateDialRatio(stats)
	effectiveRatio := dialRatio
	if campaign.DialRatio < effectiveRatio {
		effectiveRatio = campaign.DialRatio
	}

	toLaunch := o.ratio.CalculateCallsToMake(availableOperators, effectiveRatio, pendingCalls)
	if toLaunch <= 0 {
		return nil
	}

	leads := campaign.GetCallableLeads(toLaunch)
	for _, lead := range leads {
		o.launch(ctx, campaign, lead)
	}

	o.publishStats(campaignID, domain.ComputeStats(campaign))
	if campaign.CheckCompletion() {
		o.hub.BroadcastToSupervisors(eventbus.EventAlert, map[string]string{
			"type":        "campaign_completed",
			"campaign_id": campaignID,
		})
	}
	_ = o.repo.UpdateCampaign(ctx, campaign)
	return nil
}

// launch claims one lead for calling (spec: "at most one launch per
// lead per tick"); telephony failures leave the lead PENDING and
// emit an alert rather than failing the tick.
func (o *Orchestrator) launch(ctx context.Context, campaign *domain.Campaign, lead *domain.Lead) {
	if lead.CurrentState() != domain.LeadPending {
		return
	}

	result, err := o.phone.MakeCall(ctx, lead.Phone, o.callerID, "", true)
	if err != nil {
		o.hub.BroadcastToSupervisors(eventbus.EventAlert, map[string]string{
			"type":    "telephony_error",
			"lead_id": lead.ID,
			"error":   err.Error(),
		})
		return
	}
	if err := lead.StartCalling(); err != nil {
		_ = o.phone.HangupCall(ctx, result.CallID)
		return
	}

	binding := &callBinding{LeadID: lead.ID, CampaignID: campaign.ID}
	binding.Timer = time.AfterFunc(o.amdTimeout, func() {
		o.handleAMDTimeout(result.CallID)
	})

	o.callsMu.Lock()
	o.calls[result.CallID] = binding
	o.callsMu.Unlock()

	_ = o.repo.UpdateLead(ctx, lead)
	o.hub.BroadcastToCampaignSupervisors(campaign.ID, eventbus.EventCampaignStatsUpdated, domain.ComputeStats(campaign))
}

// clearCall removes callID's binding and stops its amd_timeout
// watchdog, returning the binding (or nil if already cleared) so
// callers can still read it after removal.
func (o *Orchestrator) clearCall(callID string) *callBinding {
	o.callsMu.Lock()
	defer o.callsMu.Unlock()
	binding, ok := o.calls[callID]
	if !ok {
		return nil
	}
	delete(o.calls, callID)
	if binding.Timer != nil {
		binding.Timer.Stop()
	}
	return binding
}

// handleAMDTimeout fires amdTimeout after launch if neither an AMD
// result nor a terminal status callback resolved the call first (spec
// §5: hang up and fail the lead with reason amd_timeout).
func (o *Orchestrator) handleAMDTimeout(callID string) {
	binding := o.clearCall(callID)
	if binding == nil || binding.Connected {
		return
	}

	ctx := context.Background()
	_ = o.phone.HangupCall(ctx, callID)

	campaign, err := o.repo.GetCampaign(ctx, binding.CampaignID)
	if err != nil {
		return
	}
	lead, ok := campaign.LeadByID(binding.LeadID)
	if !ok {
		return
	}
	if err := lead.Fail("amd_timeout"); err != nil {
		return
	}
	_ = o.repo.UpdateLead(ctx, lead)
	o.hub.BroadcastToCampaignSupervisors(campaign.ID, eventbus.EventCampaignStatsUpdated, domain.ComputeStats(campaign))
}

func (o *Orchestrator) publishStats(campaignID string, stats domain.CampaignStats) {
	o.hub.BroadcastToCampaignSupervisors(campaignID, eventbus.EventCampaignStatsUpdated, stats)
}

// HandleAMD routes an AMD result for a CALLING lead per spec §4.F's
// "Event routing for AMD results".
func (o *Orchestrator) HandleAMD(ctx context.Context, callID string, result telephony.AMDResult) error {
	o.callsMu.Lock()
	binding, ok := o.calls[callID]
	o.callsMu.Unlock()
	if !ok {
		return apperrors.NotFound("call", callID)
	}

	campaign, err := o.repo.GetCampaign(ctx, binding.CampaignID)
	if err != nil {
		return err
	}
	lead, ok := campaign.LeadByID(binding.LeadID)
	if !ok {
		return apperrors.NotFound("lead", binding.LeadID)
	}

	switch result {
	case telephony.AMDHuman:
		return o.connectHuman(ctx, campaign, lead, callID)
	case telephony.AMDFax:
		return o.failAndHangup(ctx, lead, callID, "fax")
	default:
		reason := "unknown"
		switch result {
		case telephony.AMDMachineStart, telephony.AMDMachineEndBeep, telephony.AMDMachineEndSilence, telephony.AMDMachineEndOther:
			reason = "machine"
		}
		return o.failAndHangup(ctx, lead, callID, reason)
	}
}

func (o *Orchestrator) connectHuman(ctx context.Context, campaign *domain.Campaign, lead *domain.Lead, callID string) error {
	sess := o.ops.SelectAndAssign(callID, lead.ID)
	if sess == nil {
		_ = o.phone.HangupCall(ctx, callID)
		campaign.IncrementAbandoned()
		lead.Fail("abandoned")
		_ = o.repo.UpdateLead(ctx, lead)
		o.clearCall(callID)
		o.hub.BroadcastToCampaignSupervisors(campaign.ID, eventbus.EventCampaignStatsUpdated, domain.ComputeStats(campaign))
		return nil
	}

	if err := lead.Connect(); err != nil {
		return err
	}
	_ = o.repo.UpdateLead(ctx, lead)

	conf, err := o.phone.CreateConference(ctx, "room-"+callID)
	if err == nil {
		_ = o.phone.AddParticipantToConference(ctx, conf.ConferenceID, callID, false, false)
	}

	o.callsMu.Lock()
	if binding, ok := o.calls[callID]; ok {
		binding.Connected = true
		if binding.Timer != nil {
			binding.Timer.Stop()
			binding.Timer = nil
		}
	}
	o.callsMu.Unlock()

	o.hub.SendToOperator(sess.ID, eventbus.EventIncomingCall, map[string]string{
		"call_id": callID,
		"lead_id": lead.ID,
	})
	o.hub.BroadcastToCampaignSupervisors(campaign.ID, eventbus.EventCampaignStatsUpdated, domain.ComputeStats(campaign))
	return nil
}

func (o *Orchestrator) failAndHangup(ctx context.Context, lead *domain.Lead, callID, reason string) error {
	_ = o.phone.HangupCall(ctx, callID)
	o.clearCall(callID)
	if err := lead.Fail(reason); err != nil {
		return err
	}
	return o.repo.UpdateLead(ctx, lead)
}

// HandleCallCompleted processes a terminal status callback (spec §4.G
// status semantics): a CALLING lead is failed with the mapped reason,
// and a CONNECTED lead with no outcome yet is completed on "completed".
func (o *Orchestrator) HandleCallCompleted(ctx context.Context, callID string, status telephony.CallStatus) error {
	o.callsMu.Lock()
	binding, ok := o.calls[callID]
	o.callsMu.Unlock()
	if !ok {
		return nil
	}

	campaign, err := o.repo.GetCampaign(ctx, binding.CampaignID)
	if err != nil {
		return err
	}
	lead, ok := campaign.LeadByID(binding.LeadID)
	if !ok {
		return nil
	}

	switch lead.CurrentState() {
	case domain.LeadConnected:
		if status == telephony.StatusCompleted && lead.Outcome == "" {
			err := o.completeLead(ctx, lead, "completed")
			o.clearCall(callID)
			return err
		}
	case domain.LeadCalling:
		reason := statusToFailReason(status)
		if reason != "" {
			err := o.repoFail(ctx, lead, reason)
			o.clearCall(callID)
			return err
		}
	}
	return nil
}

func statusToFailReason(status telephony.CallStatus) string {
	switch status {
	case telephony.StatusBusy:
		return "busy"
	case telephony.StatusNoAnswer:
		return "no_answer"
	case telephony.StatusFailed, telephony.StatusCanceled:
		return "unknown"
	default:
		return ""
	}
}

func (o *Orchestrator) completeLead(ctx context.Context, lead *domain.Lead, outcome string) error {
	if err := lead.Complete(outcome); err != nil {
		return err
	}
	return o.repo.UpdateLead(ctx, lead)
}

func (o *Orchestrator) repoFail(ctx context.Context, lead *domain.Lead, reason string) error {
	if err := lead.Fail(reason); err != nil {
		return err
	}
	return o.repo.UpdateLead(ctx, lead)
}

// ScheduleRetry admits a FAILED lead with a retriable reason back to
// PENDING after the configured backoff (spec §4.F "Retry admission").
func (o *Orchestrator) ScheduleRetry(ctx context.Context, lead *domain.Lead) {
	if !domain.RetriableFailReasons[lead.FailReason] {
		return
	}
	delay := computeRetryDelay(lead.RetryCount)
	time.AfterFunc(delay, func() {
		if err := lead.Retry(); err != nil {
			return
		}
		_ = o.repo.UpdateLead(ctx, lead)
	})
}
