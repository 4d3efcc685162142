// Package domain holds the Lead and Campaign state machines that form
// the persistent heart of the control plane (spec §3/§4.A/§4.B).
package domain

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialerctl/pkg/apperrors"
)

// LeadState enumerates the states a Lead may occupy.
type LeadState string

const (
	LeadPending   LeadState = "pending"
	LeadCalling   LeadState = "calling"
	LeadConnected LeadState = "connected"
	LeadCompleted LeadState = "completed"
	LeadFailed    LeadState = "failed"
	LeadDNC       LeadState = "dnc"
)

// Retriable fail reasons admit a retry back to PENDING per spec §4.F.
var RetriableFailReasons = map[string]bool{
	"busy":      true,
	"no_answer": true,
	"abandoned": true,
	"unknown":   true,
}

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidE164 reports whether phone is a valid E.164 number as defined
// in spec §3 / GLOSSARY.
func ValidE164(phone string) bool {
	return e164Pattern.MatchString(phone)
}

// LeadAttempt is one append-only entry in a Lead's call history.
type LeadAttempt struct {
	Timestamp    time.Time `json:"timestamp"`
	AttemptIndex int       `json:"attempt_index"`
	Outcome      string    `json:"outcome,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Lead is one prospective callee within a Campaign.
type Lead struct {
	mu sync.Mutex

	ID         string
	CampaignID string
	Phone      string
	Name       string
	Company    string
	Email      string
	Notes      string

	State       LeadState
	Outcome     string
	FailReason  string
	RetryCount  int
	MaxRetries  int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastCalled *time.Time

	History []LeadAttempt
}

// NewLead constructs a PENDING lead. phone must already be validated
// by the caller (Campaign.AddLead performs that check).
func NewLead(campaignID, phone string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Phone:      phone,
		State:      LeadPending,
		MaxRetries: 3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (l *Lead) touch() { l.UpdatedAt = time.Now().UTC() }

// RehydrateLead rebuilds a Lead from storage-loaded fields, bypassing
// NewLead's fresh-PENDING-only construction. Used only by repository
// implementations loading persisted rows.
func RehydrateLead(id, campaignID, phone string, state LeadState, outcome, failReason string,
	retryCount, maxRetries int, createdAt, updatedAt time.Time, lastCalled *time.Time,
	history []LeadAttempt) *Lead {
	return &Lead{
		ID:         id,
		CampaignID: campaignID,
		Phone:      phone,
		State:      state,
		Outcome:    outcome,
		FailReason: failReason,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		LastCalled: lastCalled,
		History:    history,
	}
}

// StartCalling transitions PENDING -> CALLING.
func (l *Lead) StartCalling() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != LeadPending {
		return apperrors.InvalidLeadTransition(string(l.State), "start_calling")
	}
	l.State = LeadCalling
	now := time.Now().UTC()
	l.LastCalled = &now
	l.touch()
	return nil
}

// Connect transitions CALLING -> CONNECTED.
func (l *Lead) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != LeadCalling {
		return apperrors.InvalidLeadTransition(string(l.State), "connect")
	}
	l.State = LeadConnected
	l.touch()
	return nil
}

// Complete transitions CONNECTED -> COMPLETED, recording outcome and
// appending a history entry atomically with the state change.
func (l *Lead) Complete(outcome string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != LeadConnected {
		return apperrors.InvalidLeadTransition(string(l.State), "complete")
	}
	l.State = LeadCompleted
	l.Outcome = outcome
	l.appendHistory(outcome, "")
	l.touch()
	return nil
}

// Fail transitions CALLING -> FAILED, recording reason and appending a
// history entry atomically with the state change. CONNECTED's only
// outbound transition is Complete.
func (l *Lead) Fail(reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != LeadCalling {
		return apperrors.InvalidLeadTransition(string(l.State), "fail")
	}
	l.State = LeadFailed
	l.FailReason = reason
	l.appendHistory("", reason)
	l.touch()
	return nil
}

// Retry transitions FAILED -> PENDING, incrementing retry_count.
// Rejected once retry_count reaches max_retries.
func (l *Lead) Retry() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != LeadFailed {
		return apperrors.InvalidLeadTransition(string(l.State), "retry")
	}
	if l.RetryCount >= l.MaxRetries {
		return apperrors.RetryLimitReached(l.ID)
	}
	l.RetryCount++
	l.State = LeadPending
	l.touch()
	return nil
}

// MarkDNC transitions any non-DNC state to DNC. Idempotent: calling it
// on an already-DNC lead is a no-op success, per spec §8 idempotence.
func (l *Lead) MarkDNC() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State == LeadDNC {
		return nil
	}
	l.State = LeadDNC
	l.touch()
	return nil
}

// appendHistory must be called with mu held.
func (l *Lead) appendHistory(outcome, reason string) {
	l.History = append(l.History, LeadAttempt{
		Timestamp:    time.Now().UTC(),
		AttemptIndex: len(l.History) + 1,
		Outcome:      outcome,
		Reason:       reason,
	})
}

// Snapshot returns a shallow copy safe to read without the lock held
// by the caller (used by repository/stats code that only reads).
func (l *Lead) Snapshot() Lead {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l
	cp.History = append([]LeadAttempt(nil), l.History...)
	return cp
}

// CurrentState returns the lead's state under lock.
func (l *Lead) CurrentState() LeadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State
}
