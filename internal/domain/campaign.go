package domain

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialerctl/pkg/apperrors"
)

// CampaignState enumerates the states a Campaign may occupy.
type CampaignState string

const (
	CampaignDraft     CampaignState = "draft"
	CampaignRunning   CampaignState = "running"
	CampaignPaused    CampaignState = "paused"
	CampaignStopped   CampaignState = "stopped"
	CampaignCompleted CampaignState = "completed"
)

const (
	MinDialRatio = 1e-3
	MaxDialRatio = 10
)

// Campaign is an owned batch of leads plus dialing configuration.
type Campaign struct {
	mu sync.RWMutex

	ID       string
	Name     string
	State    CampaignState
	CallerID string
	DialRatio float64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	leads   []*Lead
	byPhone map[string]*Lead

	// AbandonedLeads is maintained by the Orchestrator (spec §3
	// CampaignStats): a connected-but-not-assigned counter, not a
	// lead-state derived value.
	AbandonedLeads int
}

// NewCampaign validates name and constructs a DRAFT campaign.
func NewCampaign(name string, dialRatio float64) (*Campaign, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > 100 {
		return nil, apperrors.New(apperrors.CodeValidation, "campaign name must be 1..100 non-blank characters")
	}
	if dialRatio <= 0 {
		dialRatio = 3.0
	}
	if dialRatio < MinDialRatio || dialRatio > MaxDialRatio {
		return nil, apperrors.New(apperrors.CodeValidation, "dial_ratio must be within [1e-3, 10]")
	}

	now := time.Now().UTC()
	return &Campaign{
		ID:        uuid.NewString(),
		Name:      trimmed,
		State:     CampaignDraft,
		DialRatio: dialRatio,
		CreatedAt: now,
		UpdatedAt: now,
		byPhone:   make(map[string]*Lead),
	}, nil
}

func (c *Campaign) touch() { c.UpdatedAt = time.Now().UTC() }

// AddLead appends a new PENDING lead. Only permitted in DRAFT, RUNNING,
// or PAUSED states; duplicate phones within the campaign are rejected.
func (c *Campaign) AddLead(phone string) (*Lead, error) {
	if !ValidE164(phone) {
		return nil, apperrors.InvalidPhone(phone)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State {
	case CampaignDraft, CampaignRunning, CampaignPaused:
	default:
		return nil, apperrors.InvalidCampaignState(string(c.State), "add_lead")
	}

	if _, exists := c.byPhone[phone]; exists {
		return nil, apperrors.DuplicatePhone(phone)
	}

	lead := NewLead(c.ID, phone)
	c.leads = append(c.leads, lead)
	c.byPhone[phone] = lead
	c.touch()
	return lead, nil
}

// RemoveLead removes a PENDING lead by id.
func (c *Campaign) RemoveLead(leadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, l := range c.leads {
		if l.ID == leadID {
			if l.CurrentState() != LeadPending {
				return apperrors.New(apperrors.CodeState, "only PENDING leads may be removed")
			}
			c.leads = append(c.leads[:i], c.leads[i+1:]...)
			delete(c.byPhone, l.Phone)
			c.touch()
			return nil
		}
	}
	return apperrors.NotFound("lead", leadID)
}

// Start transitions DRAFT -> RUNNING; requires at least one lead.
func (c *Campaign) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State != CampaignDraft {
		return apperrors.InvalidCampaignState(string(c.State), "start")
	}
	if len(c.leads) == 0 {
		return apperrors.New(apperrors.CodeValidation, "campaign has no leads")
	}
	c.State = CampaignRunning
	now := time.Now().UTC()
	c.StartedAt = &now
	c.touch()
	return nil
}

// Pause transitions RUNNING -> PAUSED.
func (c *Campaign) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State != CampaignRunning {
		return apperrors.InvalidCampaignState(string(c.State), "pause")
	}
	c.State = CampaignPaused
	c.touch()
	return nil
}

// Resume transitions PAUSED -> RUNNING.
func (c *Campaign) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State != CampaignPaused {
		return apperrors.InvalidCampaignState(string(c.State), "resume")
	}
	c.State = CampaignRunning
	c.touch()
	return nil
}

// Stop transitions RUNNING or PAUSED -> STOPPED (terminal).
func (c *Campaign) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State != CampaignRunning && c.State != CampaignPaused {
		return apperrors.InvalidCampaignState(string(c.State), "stop")
	}
	c.State = CampaignStopped
	c.touch()
	return nil
}

// CheckCompletion scans leads (O(n)) and transitions RUNNING -> COMPLETED
// iff every lead is in a terminal state. Idempotent.
func (c *Campaign) CheckCompletion() (completed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State != CampaignRunning {
		return c.State == CampaignCompleted
	}

	for _, l := range c.leads {
		switch l.CurrentState() {
		case LeadCompleted, LeadFailed, LeadDNC:
		default:
			return false
		}
	}

	c.State = CampaignCompleted
	now := time.Now().UTC()
	c.CompletedAt = &now
	c.touch()
	return true
}

// GetCallableLeads returns up to n PENDING leads in insertion order;
// empty if the campaign is not RUNNING.
func (c *Campaign) GetCallableLeads(n int) []*Lead {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.State != CampaignRunning || n <= 0 {
		return nil
	}

	out := make([]*Lead, 0, n)
	for _, l := range c.leads {
		if len(out) == n {
			break
		}
		if l.CurrentState() == LeadPending {
			out = append(out, l)
		}
	}
	return out
}

// GetNextLead returns the first callable lead, or nil.
func (c *Campaign) GetNextLead() *Lead {
	leads := c.GetCallableLeads(1)
	if len(leads) == 0 {
		return nil
	}
	return leads[0]
}

// UpdateDialRatio sets a new positive dial ratio.
func (c *Campaign) UpdateDialRatio(r float64) error {
	if r <= 0 {
		return apperrors.New(apperrors.CodeValidation, "dial_ratio must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DialRatio = r
	c.touch()
	return nil
}

// Rehydrate rebuilds a Campaign's in-memory state from storage-loaded
// fields, for use by repository implementations that persist campaigns
// and leads in separate rows (e.g. the MySQL port). It bypasses the
// validation AddLead/NewCampaign apply to freshly created objects,
// since the rows were already validated when first written.
func Rehydrate(id, name string, state CampaignState, callerID string, dialRatio float64,
	createdAt, updatedAt time.Time, startedAt, completedAt *time.Time, abandoned int) *Campaign {
	return &Campaign{
		ID:             id,
		Name:           name,
		State:          state,
		CallerID:       callerID,
		DialRatio:      dialRatio,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		AbandonedLeads: abandoned,
		byPhone:        make(map[string]*Lead),
	}
}

// AttachLead appends an already-validated, storage-loaded lead without
// re-running AddLead's state/duplicate checks. Used only by repository
// implementations rehydrating a Campaign from durable storage.
func (c *Campaign) AttachLead(l *Lead) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leads = append(c.leads, l)
	c.byPhone[l.Phone] = l
}

// Leads returns a snapshot slice of all leads (for repository/stats use).
func (c *Campaign) Leads() []*Lead {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Lead, len(c.leads))
	copy(out, c.leads)
	return out
}

// LeadByID looks up a lead by id.
func (c *Campaign) LeadByID(id string) (*Lead, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.leads {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// CurrentState returns the campaign's state under lock.
func (c *Campaign) CurrentState() CampaignState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.State
}

// IncrementAbandoned bumps the orchestrator-maintained abandoned counter.
func (c *Campaign) IncrementAbandoned() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AbandonedLeads++
}
