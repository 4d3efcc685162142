package telephony

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHangupCauseToStatus(t *testing.T) {
	cases := map[string]CallStatus{
		"16": StatusCompleted,
		"17": StatusBusy,
		"18": StatusNoAnswer,
		"19": StatusNoAnswer,
		"21": StatusNoAnswer,
		"1":  StatusFailed,
		"27": StatusFailed,
		"34": StatusFailed,
		"38": StatusFailed,
		"":   StatusNoAnswer,
		"99": StatusNoAnswer,
	}
	for cause, want := range cases {
		require.Equal(t, want, hangupCauseToStatus(cause), "cause %q", cause)
	}
}

func TestOriginateFailureStatus(t *testing.T) {
	require.Equal(t, StatusBusy, originateFailureStatus("5"))
	require.Equal(t, StatusFailed, originateFailureStatus("8"))
	require.Equal(t, StatusFailed, originateFailureStatus("unknown"))
}

func newBareAdapter() *AMIAdapter {
	return &AMIAdapter{
		cfg:    AMIAdapterConfig{Trunk: "trunk-a"},
		active: newActiveCallRegistry(),
		pool:   newChannelPool(1, 1),
	}
}

func TestAMIAdapterUnsupportedOperationsReturnInternalError(t *testing.T) {
	a := newBareAdapter()

	_, err := a.CreateConference(context.Background(), "call-1")
	require.Error(t, err)

	err = a.AddParticipantToConference(context.Background(), "conf-1", "call-1", false, false)
	require.Error(t, err)

	_, err = a.IssueClientToken(context.Background(), "principal-1")
	require.Error(t, err)
}

func TestAMIAdapterHangupUnknownCallIsNotFound(t *testing.T) {
	a := newBareAdapter()
	err := a.HangupCall(context.Background(), "missing")
	require.Error(t, err)
}

func TestAMIAdapterGetCallStatusKnownCall(t *testing.T) {
	a := newBareAdapter()
	a.active.Add(&activeCall{CallID: "call-1", Trunk: "trunk-a"})

	status, err := a.GetCallStatus(context.Background(), "call-1")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, status)
}

func TestAMIAdapterGetCallStatusUnknownCall(t *testing.T) {
	a := newBareAdapter()
	_, err := a.GetCallStatus(context.Background(), "missing")
	require.Error(t, err)
}

func TestAMIAdapterMakeCallFailsWhenChannelPoolExhausted(t *testing.T) {
	a := newBareAdapter()
	require.True(t, a.pool.Acquire("trunk-a"))

	_, err := a.MakeCall(context.Background(), "+15551234567", "+15550000000", "", false)
	require.Error(t, err)
}
