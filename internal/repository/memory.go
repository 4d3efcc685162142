package repository

import (
	"context"
	"sync"

	"dialerctl/internal/domain"
	"dialerctl/pkg/apperrors"
)

// Memory is a deterministic in-memory Repository Port, grounded on the
// map+RWMutex registry shape used throughout this codebase for
// process-local state. It is the default backend for tests and for
// telephony.Mock-backed development runs.
type Memory struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign
	order     []string
}

// NewMemory constructs an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{campaigns: make(map[string]*domain.Campaign)}
}

func (m *Memory) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.campaigns[c.ID]; exists {
		return apperrors.New(apperrors.CodeConflict, "campaign already exists")
	}
	m.campaigns[c.ID] = c
	m.order = append(m.order, c.ID)
	return nil
}

func (m *Memory) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", id)
	}
	return c, nil
}

func (m *Memory) ListCampaigns(_ context.Context) ([]*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Campaign, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.campaigns[id])
	}
	return out, nil
}

// UpdateCampaign is a no-op beyond existence-checking: campaigns held
// by the in-memory repository are live pointers already mutated in
// place by domain methods, mirroring the teacher's pattern of mutating
// tracked structs directly rather than round-tripping through storage.
func (m *Memory) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return apperrors.NotFound("campaign", c.ID)
	}
	return nil
}

func (m *Memory) ListRunningCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	all, err := m.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Campaign, 0)
	for _, c := range all {
		if c.CurrentState() == domain.CampaignRunning {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) AddLead(_ context.Context, campaignID string, lead *domain.Lead) error {
	m.mu.RLock()
	c, ok := m.campaigns[campaignID]
	m.mu.RUnlock()
	if !ok {
		return apperrors.NotFound("campaign", campaignID)
	}
	// The campaign itself enforces uniqueness and state legality; this
	// path is used by the MySQL-backed façade's validation mirror, the
	// in-memory AddLead call is driven through domain.Campaign.AddLead
	// directly by callers (api.handlers) rather than through here.
	_ = c
	_ = lead
	return nil
}

func (m *Memory) ListLeads(_ context.Context, campaignID string) ([]*domain.Lead, error) {
	m.mu.RLock()
	c, ok := m.campaigns[campaignID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("campaign", campaignID)
	}
	return c.Leads(), nil
}

func (m *Memory) CountLeads(ctx context.Context, campaignID string) (int, error) {
	leads, err := m.ListLeads(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return len(leads), nil
}

func (m *Memory) CountLeadsByStatus(ctx context.Context, campaignID string) (map[domain.LeadState]int, error) {
	leads, err := m.ListLeads(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.LeadState]int)
	for _, l := range leads {
		counts[l.CurrentState()]++
	}
	return counts, nil
}

func (m *Memory) ExistingPhoneNumbers(ctx context.Context, campaignID string) (map[string]bool, error) {
	leads, err := m.ListLeads(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(leads))
	for _, l := range leads {
		out[l.Phone] = true
	}
	return out, nil
}

// UpdateLead is a no-op: leads tracked by the in-memory repository are
// live pointers already mutated in place by Lead's own methods.
func (m *Memory) UpdateLead(_ context.Context, _ *domain.Lead) error {
	return nil
}
