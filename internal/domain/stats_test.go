package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbandonRateZeroDenominator(t *testing.T) {
	s := CampaignStats{}
	require.Equal(t, 0.0, s.AbandonRate())
}

func TestAbandonRateBounds(t *testing.T) {
	s := CampaignStats{Connected: 3, AbandonedLeads: 1}
	rate := s.AbandonRate()
	require.GreaterOrEqual(t, rate, 0.0)
	require.LessOrEqual(t, rate, 1.0)
	require.InDelta(t, 0.25, rate, 1e-9)
}

func TestComputeStatsCountsByState(t *testing.T) {
	c, err := NewCampaign("test", 3)
	require.NoError(t, err)

	pending, _ := c.AddLead("+15551230000")
	calling, _ := c.AddLead("+15551230001")
	connected, _ := c.AddLead("+15551230002")
	completed, _ := c.AddLead("+15551230003")
	failed, _ := c.AddLead("+15551230004")
	dnc, _ := c.AddLead("+15551230005")

	require.NoError(t, c.Start())

	require.NoError(t, calling.StartCalling())

	require.NoError(t, connected.StartCalling())
	require.NoError(t, connected.Connect())

	require.NoError(t, completed.StartCalling())
	require.NoError(t, completed.Connect())
	require.NoError(t, completed.Complete("sale"))

	require.NoError(t, failed.StartCalling())
	require.NoError(t, failed.Fail("no_answer"))

	require.NoError(t, dnc.MarkDNC())

	c.IncrementAbandoned()
	_ = pending

	s := ComputeStats(c)
	require.Equal(t, 1, s.Pending)
	require.Equal(t, 1, s.Calling)
	require.Equal(t, 1, s.Connected)
	require.Equal(t, 1, s.Completed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, 1, s.DNC)
	require.Equal(t, 1, s.AbandonedLeads)
}
