package webhook

import (
	"context"

	"dialerctl/internal/telephony"
)

// StatusCallbackPayload is the parsed form body of a status callback
// (spec §4.G).
type StatusCallbackPayload struct {
	CallID       string
	Status       string
	From         string
	To           string
	Duration     string
	ErrorCode    string
	ErrorMessage string
}

// AMDCallbackPayload is the parsed form body of an amd callback.
type AMDCallbackPayload struct {
	CallID     string
	AnsweredBy string
}

// VoiceCallbackPayload is the parsed form body of the initial voice
// handshake.
type VoiceCallbackPayload struct {
	CallID string
	From   string
	To     string
}

// OrchestratorSink is the subset of the Orchestrator the Ingestor
// drives; declared here (rather than importing the concrete type) to
// avoid a webhook<->orchestrator import cycle, since the orchestrator
// package does not depend on webhook.
type OrchestratorSink interface {
	HandleAMD(ctx context.Context, callID string, result telephony.AMDResult) error
	HandleCallCompleted(ctx context.Context, callID string, status telephony.CallStatus) error
}

// Ingestor translates signed provider callbacks into Orchestrator
// calls and XML control responses, grounded on original_source's
// webhooks.py (exact TwiML literals and callback shapes) and the
// platform's call_status_handler.go (dispatch-by-event-kind shape).
type Ingestor struct {
	orch OrchestratorSink
}

func NewIngestor(orch OrchestratorSink) *Ingestor {
	return &Ingestor{orch: orch}
}

var statusDomain = map[string]telephony.CallStatus{
	"queued":      telephony.StatusQueued,
	"ringing":     telephony.StatusRinging,
	"in-progress": telephony.StatusInProgress,
	"completed":   telephony.StatusCompleted,
	"busy":        telephony.StatusBusy,
	"failed":      telephony.StatusFailed,
	"no-answer":   telephony.StatusNoAnswer,
	"canceled":    telephony.StatusCanceled,
}

// HandleStatus processes a call-status callback, always returning a
// valid XML ack even if internal dispatch fails (spec §7: "AMD/status
// callbacks always respond 200 with a valid control-XML document even
// on internal dispatch errors, to avoid the provider's retry storms").
func (in *Ingestor) HandleStatus(ctx context.Context, p StatusCallbackPayload) []byte {
	if status, ok := statusDomain[p.Status]; ok {
		_ = in.orch.HandleCallCompleted(ctx, p.CallID, status)
	}
	return EmptyAck()
}

var amdDomain = map[string]telephony.AMDResult{
	"human":               telephony.AMDHuman,
	"machine_start":       telephony.AMDMachineStart,
	"machine_end_beep":    telephony.AMDMachineEndBeep,
	"machine_end_silence": telephony.AMDMachineEndSilence,
	"machine_end_other":   telephony.AMDMachineEndOther,
	"fax":                 telephony.AMDFax,
}

// HandleAMD processes an AMD callback and returns the XML control
// directive matching the outcome.
func (in *Ingestor) HandleAMD(ctx context.Context, p AMDCallbackPayload) []byte {
	result, ok := amdDomain[p.AnsweredBy]
	if !ok {
		result = telephony.AMDUnknown
	}
	_ = in.orch.HandleAMD(ctx, p.CallID, result)

	if result == telephony.AMDHuman {
		return BridgeToConference(p.CallID)
	}
	return Hangup()
}

// HandleVoice processes the initial answered-call handshake.
func (in *Ingestor) HandleVoice(_ context.Context, _ VoiceCallbackPayload) []byte {
	return VoicePause()
}
