package telephony

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialerctl/pkg/apperrors"
)

// Mock is a deterministic, timer-driven Telephony Port, grounded on
// the original platform's MockTwilioService: every call progresses
// queued -> ringing -> in_progress on fixed delays, then (if machine
// detection was requested) emits one configured AMD result. Status and
// AMD callbacks registered via OnStatus/OnAMD deliver these events
// in-process instead of over HTTP (cmd/dialerd wires them straight to
// the Orchestrator, not through the Webhook Ingestor).
type Mock struct {
	mu sync.Mutex

	DefaultAMDResult   AMDResult
	CallAnswerDelay    time.Duration
	AMDDetectionDelay  time.Duration

	calls       map[string]*mockCall
	conferences map[string]*mockConference

	statusCallbacks []StatusCallback
	amdCallbacks    []AMDCallback
}

type mockCall struct {
	callID       string
	to, from     string
	status       CallStatus
	amdResult    AMDResult
	conferenceID string
}

type mockConference struct {
	id           string
	friendlyName string
	participants []string
}

// NewMock constructs a Mock with the platform's historical defaults:
// human answers after ~1s ring + ~2s AMD detection.
func NewMock() *Mock {
	return &Mock{
		DefaultAMDResult:  AMDHuman,
		CallAnswerDelay:   1 * time.Second,
		AMDDetectionDelay: 2 * time.Second,
		calls:             make(map[string]*mockCall),
		conferences:       make(map[string]*mockConference),
	}
}

// OnStatus registers a callback invoked whenever a mock call's status
// changes.
func (m *Mock) OnStatus(cb StatusCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCallbacks = append(m.statusCallbacks, cb)
}

// OnAMD registers a callback invoked when a mock call's AMD result
// becomes available.
func (m *Mock) OnAMD(cb AMDCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.amdCallbacks = append(m.amdCallbacks, cb)
}

// SetNextOutcome configures the AMD result subsequent calls resolve to.
func (m *Mock) SetNextOutcome(result AMDResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultAMDResult = result
}

func (m *Mock) MakeCall(_ context.Context, to, from, _ string, machineDetection bool) (CallResult, error) {
	callID := "CA" + uuid.NewString()

	m.mu.Lock()
	m.calls[callID] = &mockCall{callID: callID, to: to, from: from, status: StatusQueued}
	m.mu.Unlock()

	go m.simulateProgression(callID, machineDetection)

	return CallResult{CallID: callID, Status: StatusQueued}, nil
}

func (m *Mock) simulateProgression(callID string, machineDetection bool) {
	time.Sleep(500 * time.Millisecond)
	m.setStatus(callID, StatusRinging)

	m.mu.Lock()
	delay := m.CallAnswerDelay
	m.mu.Unlock()
	time.Sleep(delay)
	m.setStatus(callID, StatusInProgress)

	if !machineDetection {
		return
	}

	m.mu.Lock()
	amdDelay := m.AMDDetectionDelay
	result := m.DefaultAMDResult
	m.mu.Unlock()
	time.Sleep(amdDelay)

	m.mu.Lock()
	call, ok := m.calls[callID]
	if ok {
		call.amdResult = result
	}
	cbs := append([]AMDCallback(nil), m.amdCallbacks...)
	m.mu.Unlock()

	if !ok {
		return
	}
	for _, cb := range cbs {
		safeInvokeAMD(cb, callID, result)
	}
}

func safeInvokeAMD(cb AMDCallback, callID string, result AMDResult) {
	defer func() { recover() }()
	cb(callID, result)
}

func safeInvokeStatus(cb StatusCallback, callID string, status CallStatus) {
	defer func() { recover() }()
	cb(callID, status)
}

func (m *Mock) setStatus(callID string, status CallStatus) {
	m.mu.Lock()
	call, ok := m.calls[callID]
	if ok {
		call.status = status
	}
	cbs := append([]StatusCallback(nil), m.statusCallbacks...)
	m.mu.Unlock()

	if !ok {
		return
	}
	for _, cb := range cbs {
		safeInvokeStatus(cb, callID, status)
	}
}

func (m *Mock) CreateConference(_ context.Context, friendlyName string) (ConferenceResult, error) {
	id := "CF" + uuid.NewString()
	m.mu.Lock()
	m.conferences[id] = &mockConference{id: id, friendlyName: friendlyName}
	m.mu.Unlock()
	return ConferenceResult{ConferenceID: id}, nil
}

func (m *Mock) AddParticipantToConference(_ context.Context, conferenceID, callID string, _, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conf, ok := m.conferences[conferenceID]
	if !ok {
		return apperrors.NotFound("conference", conferenceID)
	}
	call, ok := m.calls[callID]
	if !ok {
		return apperrors.NotFound("call", callID)
	}
	conf.participants = append(conf.participants, callID)
	call.conferenceID = conferenceID
	return nil
}

func (m *Mock) HangupCall(_ context.Context, callID string) error {
	m.setStatus(callID, StatusCompleted)
	return nil
}

func (m *Mock) GetCallStatus(_ context.Context, callID string) (CallStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callID]
	if !ok {
		return "", apperrors.NotFound("call", callID)
	}
	return call.status, nil
}

func (m *Mock) IssueClientToken(_ context.Context, principalID string) (string, error) {
	return fmt.Sprintf("mock-token-%s-%d", principalID, time.Now().UnixNano()), nil
}
