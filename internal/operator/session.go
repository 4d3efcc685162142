// Package operator implements the Operator Manager: an in-memory,
// process-wide registry of human-agent sessions and the
// longest-idle-first routing policy the Dialer Orchestrator consults
// when handing off a connected call, grounded on the platform's
// ActiveCallTracker (map+RWMutex registry shape) and generalized to
// the original_source operator_manager.py state machine.
package operator

import (
	"time"

	"dialerctl/pkg/apperrors"
)

// Status is an operator session's availability state.
type Status string

const (
	StatusOffline Status = "offline"
	StatusAvailable Status = "available"
	StatusOnCall    Status = "on_call"
	StatusOnBreak   Status = "on_break"
	StatusWrapUp    Status = "wrap_up"
)

// Session is one operator's volatile session state (spec §3
// OperatorSession). It is never persisted; it is rebuilt each time the
// operator reconnects.
type Session struct {
	ID   string
	Name string

	status Status

	currentCallID string
	currentLeadID string

	idleSince       time.Time
	callStartedAt   time.Time
	sessionStartedAt time.Time

	CallsHandled         int
	TotalTalkTimeSeconds int
}

// NewSession constructs an offline session for the given operator
// principal.
func NewSession(id, name string) *Session {
	return &Session{ID: id, Name: name, status: StatusOffline}
}

func (s *Session) Status() Status { return s.status }

// IdleSince returns the time the operator became available, or the
// zero time if not currently AVAILABLE.
func (s *Session) IdleSince() time.Time { return s.idleSince }

// IdleDuration is how long the operator has been idle; zero when not
// AVAILABLE.
func (s *Session) IdleDuration() time.Duration {
	if s.status != StatusAvailable || s.idleSince.IsZero() {
		return 0
	}
	return time.Since(s.idleSince)
}

func (s *Session) CurrentCall() (callID, leadID string) { return s.currentCallID, s.currentLeadID }

func (s *Session) IsAvailable() bool { return s.status == StatusAvailable }

func (s *Session) GoOnline() {
	s.status = StatusAvailable
	now := time.Now()
	s.idleSince = now
	s.sessionStartedAt = now
}

func (s *Session) GoOffline() {
	s.status = StatusOffline
	s.idleSince = time.Time{}
	s.currentCallID = ""
	s.currentLeadID = ""
}

// StartCall transitions AVAILABLE -> ON_CALL, binding the call. Fails
// if the operator is not AVAILABLE.
func (s *Session) StartCall(callID, leadID string) *apperrors.AppError {
	if s.status != StatusAvailable {
		return apperrors.InvalidLeadTransition(string(s.status), "start_call")
	}
	s.status = StatusOnCall
	s.currentCallID = callID
	s.currentLeadID = leadID
	s.callStartedAt = time.Now()
	s.idleSince = time.Time{}
	return nil
}

// EndCall transitions ON_CALL -> AVAILABLE, accumulating talk time and
// incrementing the handled-call counter.
func (s *Session) EndCall() *apperrors.AppError {
	if s.status != StatusOnCall {
		return apperrors.InvalidLeadTransition(string(s.status), "end_call")
	}
	if !s.callStartedAt.IsZero() {
		s.TotalTalkTimeSeconds += int(time.Since(s.callStartedAt).Seconds())
		s.CallsHandled++
	}
	s.status = StatusAvailable
	s.currentCallID = ""
	s.currentLeadID = ""
	s.callStartedAt = time.Time{}
	s.idleSince = time.Now()
	return nil
}

func (s *Session) GoOnBreak() *apperrors.AppError {
	if s.status != StatusAvailable {
		return apperrors.InvalidLeadTransition(string(s.status), "go_on_break")
	}
	s.status = StatusOnBreak
	s.idleSince = time.Time{}
	return nil
}

func (s *Session) ReturnFromBreak() *apperrors.AppError {
	if s.status != StatusOnBreak {
		return apperrors.InvalidLeadTransition(string(s.status), "return_from_break")
	}
	s.status = StatusAvailable
	s.idleSince = time.Now()
	return nil
}

func (s *Session) StartWrapUp() *apperrors.AppError {
	if s.status != StatusOnCall {
		return apperrors.InvalidLeadTransition(string(s.status), "start_wrap_up")
	}
	s.status = StatusWrapUp
	s.idleSince = time.Time{}
	return nil
}

func (s *Session) EndWrapUp() *apperrors.AppError {
	if s.status != StatusWrapUp {
		return apperrors.InvalidLeadTransition(string(s.status), "end_wrap_up")
	}
	s.status = StatusAvailable
	s.idleSince = time.Now()
	return nil
}

// Snapshot is an immutable view of a Session for API/event serialization.
type Snapshot struct {
	ID                   string
	Name                 string
	Status               Status
	CurrentCallID        string
	CurrentLeadID        string
	IdleDurationSeconds  float64
	CallsHandled         int
	TotalTalkTimeSeconds int
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:                   s.ID,
		Name:                 s.Name,
		Status:               s.status,
		CurrentCallID:        s.currentCallID,
		CurrentLeadID:        s.currentLeadID,
		IdleDurationSeconds:  s.IdleDuration().Seconds(),
		CallsHandled:         s.CallsHandled,
		TotalTalkTimeSeconds: s.TotalTalkTimeSeconds,
	}
}
