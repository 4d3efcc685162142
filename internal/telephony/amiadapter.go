package telephony

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dialerctl/pkg/apperrors"
	"dialerctl/pkg/logging"
)

// AMIAdapterConfig configures the AMI-backed Telephony Port.
type AMIAdapterConfig struct {
	AMI            AMIConfig
	Trunk          string
	Context        string // Asterisk dialplan context originated calls enter
	MaxGlobal      int
	MaxPerTrunk    int
	OriginateTimeout time.Duration
}

// AMIAdapter is the Asterisk/AMI-backed implementation of
// telephony.Port, assembled from the platform's channel pool, AMI
// client and active-call tracker, grounded on the original AMIDialer's
// Dial method: acquire a channel slot, send an Originate action keyed
// by a generated ActionID, and block on a per-action response channel
// populated by the OriginateResponse event listener.
type AMIAdapter struct {
	cfg    AMIAdapterConfig
	client *amiClient
	pool   *channelPool
	active *activeCallRegistry

	mu      sync.Mutex
	pending map[string]chan amiEvent

	statusCallbacks []StatusCallback
	amdCallbacks    []AMDCallback

	log *logrus.Entry
}

// NewAMIAdapter constructs an adapter and connects it to the
// configured AMI endpoint, then starts its event listener goroutine.
func NewAMIAdapter(cfg AMIAdapterConfig) (*AMIAdapter, error) {
	client := newAMIClient(cfg.AMI)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to AMI: %w", err)
	}

	a := &AMIAdapter{
		cfg:     cfg,
		client:  client,
		pool:    newChannelPool(cfg.MaxGlobal, cfg.MaxPerTrunk),
		active:  newActiveCallRegistry(),
		pending: make(map[string]chan amiEvent),
		log:     logging.Get("telephony.amiadapter"),
	}
	go a.listen()
	return a, nil
}

// OnStatus registers a callback invoked when an AMI event resolves a
// call to a terminal status.
func (a *AMIAdapter) OnStatus(cb StatusCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statusCallbacks = append(a.statusCallbacks, cb)
}

// OnAMD registers a callback; the AMI adapter does not perform
// in-band answering-machine detection itself (that is handled by the
// dialplan/AGI layer out of this module's scope), so AMD callbacks
// registered here are never invoked. Kept to satisfy callers that
// register against the Port uniformly regardless of backend.
func (a *AMIAdapter) OnAMD(cb AMDCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.amdCallbacks = append(a.amdCallbacks, cb)
}

func (a *AMIAdapter) listen() {
	events := a.client.Subscribe()
	for event := range events {
		switch event.Type {
		case "OriginateResponse":
			if actionID := event.Fields["ActionID"]; actionID != "" {
				a.dispatch(actionID, event)
			}
		case "Hangup":
			a.handleHangup(event)
		}
	}
}

func (a *AMIAdapter) dispatch(actionID string, event amiEvent) {
	a.mu.Lock()
	ch, ok := a.pending[actionID]
	a.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
	}
}

func (a *AMIAdapter) handleHangup(event amiEvent) {
	channel := event.Fields["Channel"]
	call := a.active.GetByAlias(channel)
	if call == nil {
		return
	}
	status := hangupCauseToStatus(event.Fields["Cause"])
	a.active.Remove(call.CallID)
	a.pool.Release(call.Trunk)
	a.log.WithFields(logrus.Fields{"call_id": call.CallID, "status": status}).Debug("call ended")

	a.mu.Lock()
	cbs := append([]StatusCallback(nil), a.statusCallbacks...)
	a.mu.Unlock()
	for _, cb := range cbs {
		safeInvokeStatus(cb, call.CallID, status)
	}
}

// hangupCauseToStatus maps Asterisk Q.931 hangup cause codes to the
// port's CallStatus domain.
func hangupCauseToStatus(cause string) CallStatus {
	code, _ := strconv.Atoi(cause)
	switch code {
	case 16:
		return StatusCompleted
	case 17:
		return StatusBusy
	case 18, 19, 21:
		return StatusNoAnswer
	case 1, 27:
		return StatusFailed
	case 34, 38:
		return StatusFailed
	default:
		return StatusNoAnswer
	}
}

// originateFailureStatus maps an OriginateResponse Reason code to a
// terminal status when the Response itself was not "Success".
func originateFailureStatus(reason string) CallStatus {
	switch reason {
	case "5":
		return StatusBusy
	case "8":
		return StatusFailed
	default:
		return StatusFailed
	}
}

// MakeCall originates a call over the configured trunk via AMI
// Originate, blocking until Asterisk accepts or rejects origination.
// statusCallbackURL is accepted for Port-interface parity; the AMI
// backend reports status via the Hangup-event listener (OnStatus)
// rather than an HTTP webhook.
func (a *AMIAdapter) MakeCall(ctx context.Context, to, from, _ string, _ bool) (CallResult, error) {
	if !a.pool.Acquire(a.cfg.Trunk) {
		return CallResult{}, &CallError{Reason: "channel_limit", Message: fmt.Sprintf("channel limit reached for trunk %s", a.cfg.Trunk)}
	}

	releaseRequired := true
	defer func() {
		if releaseRequired {
			a.pool.Release(a.cfg.Trunk)
		}
	}()

	callID := "AMI-" + uuid.NewString()
	actionID := "act-" + callID

	call := &activeCall{CallID: callID, Trunk: a.cfg.Trunk, To: to, From: from, StartTime: time.Now()}
	a.active.Add(call)
	defer func() {
		if releaseRequired {
			a.active.Remove(callID)
		}
	}()

	respChan := make(chan amiEvent, 1)
	a.mu.Lock()
	a.pending[actionID] = respChan
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, actionID)
		a.mu.Unlock()
	}()

	channel := fmt.Sprintf("SIP/%s/%s", a.cfg.Trunk, to)
	timeout := a.cfg.OriginateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	action := fmt.Sprintf(
		"Action: Originate\r\n"+
			"ActionID: %s\r\n"+
			"Channel: %s\r\n"+
			"Context: %s\r\n"+
			"Exten: s\r\n"+
			"Priority: 1\r\n"+
			"CallerID: %s\r\n"+
			"Timeout: %d\r\n"+
			"Async: true\r\n"+
			"Variable: DIALERCTL_CALL_ID=%s\r\n"+
			"\r\n",
		actionID, channel, a.cfg.Context, from, timeout.Milliseconds(), callID,
	)

	if err := a.client.SendAction(action); err != nil {
		return CallResult{}, fmt.Errorf("sending originate: %w", err)
	}

	select {
	case event := <-respChan:
		if event.Fields["Response"] == "Success" {
			a.active.AddAlias(channel, callID)
			releaseRequired = false
			return CallResult{CallID: callID, Status: StatusRinging}, nil
		}
		status := originateFailureStatus(event.Fields["Reason"])
		return CallResult{CallID: callID, Status: status}, &CallError{
			Reason:  event.Fields["Reason"],
			Message: fmt.Sprintf("originate failed: %s", event.Fields["Response"]),
		}
	case <-ctx.Done():
		return CallResult{}, ctx.Err()
	case <-time.After(timeout + 5*time.Second):
		return CallResult{}, &CallError{Reason: "timeout", Message: "no response from AMI"}
	}
}

// CreateConference is unsupported by the AMI backend in this module's
// scope (conference bridging would require an AMI Bridge/ConfBridge
// integration not exercised by the spec's end-to-end scenarios, which
// only use conferences against the mock/hosted-telephony backend).
func (a *AMIAdapter) CreateConference(context.Context, string) (ConferenceResult, error) {
	return ConferenceResult{}, apperrors.Internal("CreateConference not supported by AMI backend", nil)
}

// AddParticipantToConference is unsupported for the same reason as
// CreateConference.
func (a *AMIAdapter) AddParticipantToConference(context.Context, string, string, bool, bool) error {
	return apperrors.Internal("AddParticipantToConference not supported by AMI backend", nil)
}

func (a *AMIAdapter) HangupCall(_ context.Context, callID string) error {
	call := a.active.Get(callID)
	if call == nil {
		return apperrors.NotFound("call", callID)
	}
	action := fmt.Sprintf("Action: Hangup\r\nChannel: SIP/%s/%s\r\n\r\n", call.Trunk, call.To)
	return a.client.SendAction(action)
}

func (a *AMIAdapter) GetCallStatus(_ context.Context, callID string) (CallStatus, error) {
	call := a.active.Get(callID)
	if call == nil {
		return "", apperrors.NotFound("call", callID)
	}
	return StatusInProgress, nil
}

// IssueClientToken is unsupported by the AMI backend: AMI has no
// notion of a client-SDK token, that concept belongs to hosted
// telephony providers (spec §1, out of scope beyond pass-through).
func (a *AMIAdapter) IssueClientToken(context.Context, string) (string, error) {
	return "", apperrors.Internal("IssueClientToken not supported by AMI backend", nil)
}

// Close releases the underlying AMI connection.
func (a *AMIAdapter) Close() error {
	return a.client.Close()
}
