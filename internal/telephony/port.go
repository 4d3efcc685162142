// Package telephony defines the Telephony Port contract (spec §4.D)
// and two backends: a deterministic timer-driven mock and an
// AMI/Asterisk PBX adapter.
package telephony

import "context"

// CallStatus is the telephony call-status domain.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusBusy       CallStatus = "busy"
	StatusFailed     CallStatus = "failed"
	StatusNoAnswer   CallStatus = "no_answer"
	StatusCanceled   CallStatus = "canceled"
)

// AMDResult is the Answering Machine Detection domain.
type AMDResult string

const (
	AMDHuman            AMDResult = "human"
	AMDMachineStart      AMDResult = "machine_start"
	AMDMachineEndBeep    AMDResult = "machine_end_beep"
	AMDMachineEndSilence AMDResult = "machine_end_silence"
	AMDMachineEndOther   AMDResult = "machine_end_other"
	AMDFax               AMDResult = "fax"
	AMDUnknown           AMDResult = "unknown"
)

// CallResult is returned by make_call.
type CallResult struct {
	CallID string
	Status CallStatus
}

// ConferenceResult is returned by create_conference.
type ConferenceResult struct {
	ConferenceID string
}

// CallError carries a typed reason so callers can branch on it instead
// of inspecting error strings; the Orchestrator does not inspect it.
type CallError struct {
	Reason  string
	Message string
}

func (e *CallError) Error() string { return e.Message }

// Port is the Telephony Port's external-collaborator contract.
type Port interface {
	MakeCall(ctx context.Context, to, from string, statusCallbackURL string, machineDetection bool) (CallResult, error)
	CreateConference(ctx context.Context, friendlyName string) (ConferenceResult, error)
	AddParticipantToConference(ctx context.Context, conferenceID, callID string, muted, hold bool) error
	HangupCall(ctx context.Context, callID string) error
	GetCallStatus(ctx context.Context, callID string) (CallStatus, error)
	// IssueClientToken returns an opaque token a telephony client SDK
	// can use to originate browser/softphone legs. Token issuance
	// internals are out of scope (spec §1); this is a thin pass-through.
	IssueClientToken(ctx context.Context, principalID string) (string, error)

	// OnStatus and OnAMD register callbacks invoked in-process when the
	// backend resolves a call's status or AMD result, so the core can
	// be wired to either backend uniformly instead of relying on an
	// HTTP webhook round-trip when running against the mock.
	OnStatus(cb StatusCallback)
	OnAMD(cb AMDCallback)
}

// StatusCallback is invoked by a Port implementation when a call's
// status changes, standing in for an HTTP status webhook when the
// core and the port run in the same process (telephony.Mock).
type StatusCallback func(callID string, status CallStatus)

// AMDCallback is invoked when an AMD result becomes available.
type AMDCallback func(callID string, result AMDResult)
