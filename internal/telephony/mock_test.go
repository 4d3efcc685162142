package telephony

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFastMock() *Mock {
	m := NewMock()
	m.CallAnswerDelay = 10 * time.Millisecond
	m.AMDDetectionDelay = 10 * time.Millisecond
	return m
}

func TestMockMakeCallProgressesToInProgress(t *testing.T) {
	m := newFastMock()
	ctx := context.Background()

	result, err := m.MakeCall(ctx, "+15551230000", "+15559990000", "", false)
	require.NoError(t, err)
	require.Equal(t, StatusQueued, result.Status)

	require.Eventually(t, func() bool {
		status, err := m.GetCallStatus(ctx, result.CallID)
		return err == nil && status == StatusInProgress
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMockMakeCallWithAMDInvokesCallback(t *testing.T) {
	m := newFastMock()
	m.SetNextOutcome(AMDMachineStart)
	ctx := context.Background()

	results := make(chan AMDResult, 1)
	m.OnAMD(func(_ string, result AMDResult) {
		results <- result
	})

	_, err := m.MakeCall(ctx, "+15551230000", "+15559990000", "", true)
	require.NoError(t, err)

	select {
	case r := <-results:
		require.Equal(t, AMDMachineStart, r)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for AMD callback")
	}
}

func TestMockHangupSetsCompleted(t *testing.T) {
	m := newFastMock()
	ctx := context.Background()

	result, err := m.MakeCall(ctx, "+15551230000", "+15559990000", "", false)
	require.NoError(t, err)

	require.NoError(t, m.HangupCall(ctx, result.CallID))
	status, err := m.GetCallStatus(ctx, result.CallID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, status)
}

func TestMockGetCallStatusUnknownCall(t *testing.T) {
	m := newFastMock()
	_, err := m.GetCallStatus(context.Background(), "missing")
	require.Error(t, err)
}

func TestMockConferenceParticipants(t *testing.T) {
	m := newFastMock()
	ctx := context.Background()

	call, err := m.MakeCall(ctx, "+15551230000", "+15559990000", "", false)
	require.NoError(t, err)

	conf, err := m.CreateConference(ctx, "room-1")
	require.NoError(t, err)

	require.NoError(t, m.AddParticipantToConference(ctx, conf.ConferenceID, call.CallID, false, false))

	err = m.AddParticipantToConference(ctx, "missing-conf", call.CallID, false, false)
	require.Error(t, err)
}

func TestMockIssueClientTokenIsNonEmpty(t *testing.T) {
	m := newFastMock()
	token, err := m.IssueClientToken(context.Background(), "op-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
}
