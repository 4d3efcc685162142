package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeStampsUTC(t *testing.T) {
	env := NewEnvelope(EventPong, map[string]string{"ok": "true"})
	require.Equal(t, EventPong, env.Event)
	require.Equal(t, "UTC", env.Timestamp.Location().String())
}

func TestEnvelopeMarshalsExpectedShape(t *testing.T) {
	env := NewEnvelope(EventAlert, map[string]string{"msg": "hi"})
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "alert", decoded["event"])
	require.Contains(t, decoded, "data")
	require.Contains(t, decoded, "timestamp")
}

func TestClientActionUnmarshalsKnownFields(t *testing.T) {
	raw := []byte(`{"set_status":"available"}`)
	var action ClientAction
	require.NoError(t, json.Unmarshal(raw, &action))
	require.Equal(t, "available", action.SetStatus)
	require.Empty(t, action.AcceptCall)
}
