package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dialerctl/pkg/apperrors"
)

func TestNewCampaignValidation(t *testing.T) {
	_, err := NewCampaign("", 3.0)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = NewCampaign("ok", 20)
	require.Error(t, err)

	c, err := NewCampaign("  Summer Promo  ", 0)
	require.NoError(t, err)
	require.Equal(t, "Summer Promo", c.Name)
	require.Equal(t, 3.0, c.DialRatio)
	require.Equal(t, CampaignDraft, c.CurrentState())
}

func TestCampaignAddLeadRejectsDuplicatesAndBadPhones(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)

	_, err = c.AddLead("not-a-phone")
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))

	l, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = c.AddLead("+15551230000")
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestCampaignStartRequiresLeads(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)

	err = c.Start()
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.Equal(t, CampaignRunning, c.CurrentState())
	require.NotNil(t, c.StartedAt)
}

func TestCampaignLifecycleTransitions(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)
	_, err = c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.NoError(t, c.Pause())
	require.Equal(t, CampaignPaused, c.CurrentState())

	require.NoError(t, c.Resume())
	require.Equal(t, CampaignRunning, c.CurrentState())

	require.NoError(t, c.Stop())
	require.Equal(t, CampaignStopped, c.CurrentState())

	require.Error(t, c.Pause())
	require.Error(t, c.Resume())
}

func TestCampaignCheckCompletionIdempotent(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)
	l, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.False(t, c.CheckCompletion())

	require.NoError(t, l.StartCalling())
	require.NoError(t, l.Connect())
	require.NoError(t, l.Complete("sale"))

	require.True(t, c.CheckCompletion())
	require.Equal(t, CampaignCompleted, c.CurrentState())
	require.NotNil(t, c.CompletedAt)

	// calling again after completion is a no-op, still reports complete
	require.True(t, c.CheckCompletion())
}

func TestCampaignGetCallableLeadsOnlyWhenRunning(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)
	_, err = c.AddLead("+15551230000")
	require.NoError(t, err)

	require.Empty(t, c.GetCallableLeads(5))

	require.NoError(t, c.Start())
	leads := c.GetCallableLeads(5)
	require.Len(t, leads, 1)
}

func TestCampaignRemoveLeadOnlyPending(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)
	l, err := c.AddLead("+15551230000")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.NoError(t, l.StartCalling())
	err = c.RemoveLead(l.ID)
	require.Error(t, err, "only PENDING leads may be removed")

	pending, err := c.AddLead("+15551230001")
	require.NoError(t, err)
	require.NoError(t, c.RemoveLead(pending.ID))

	_, found := c.LeadByID(pending.ID)
	require.False(t, found)
}
