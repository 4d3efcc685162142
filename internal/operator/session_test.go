package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dialerctl/pkg/apperrors"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("op-1", "Alice")
	require.Equal(t, StatusOffline, s.Status())

	s.GoOnline()
	require.True(t, s.IsAvailable())

	require.NoError(t, toErr(s.StartCall("call-1", "lead-1")))
	require.Equal(t, StatusOnCall, s.Status())
	callID, leadID := s.CurrentCall()
	require.Equal(t, "call-1", callID)
	require.Equal(t, "lead-1", leadID)

	require.NoError(t, toErr(s.EndCall()))
	require.True(t, s.IsAvailable())
	require.Equal(t, 1, s.CallsHandled)
}

func TestSessionStartCallRequiresAvailable(t *testing.T) {
	s := NewSession("op-1", "Alice")
	err := s.StartCall("call-1", "lead-1")
	require.Error(t, err)
}

func TestSessionBreakCycle(t *testing.T) {
	s := NewSession("op-1", "Alice")
	s.GoOnline()

	require.NoError(t, toErr(s.GoOnBreak()))
	require.Equal(t, StatusOnBreak, s.Status())

	require.NoError(t, toErr(s.ReturnFromBreak()))
	require.True(t, s.IsAvailable())
}

func TestSessionWrapUpCycle(t *testing.T) {
	s := NewSession("op-1", "Alice")
	s.GoOnline()
	require.NoError(t, toErr(s.StartCall("call-1", "lead-1")))
	require.NoError(t, toErr(s.StartWrapUp()))
	require.Equal(t, StatusWrapUp, s.Status())
	require.NoError(t, toErr(s.EndWrapUp()))
	require.True(t, s.IsAvailable())
}

// toErr converts a *apperrors.AppError return value to a plain error,
// avoiding the typed-nil-interface trap require.NoError would otherwise
// trip over.
func toErr(e *apperrors.AppError) error {
	if e == nil {
		return nil
	}
	return e
}
