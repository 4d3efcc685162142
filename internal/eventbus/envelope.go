// Package eventbus implements the Event Fabric (spec §4.H): a typed
// duplex message bus over long-lived websocket connections, fanning
// server-originated events out to operator and supervisor audiences.
// Grounded on the platform's internal/websocket Hub/Client
// register-unregister-broadcast pattern, generalized to two audiences
// and a closed event-type vocabulary instead of free-form topics.
package eventbus

import "time"

// EventType is drawn from the closed vocabulary in spec §4.H.
type EventType string

const (
	EventConnected              EventType = "connected"
	EventIncomingCall           EventType = "incoming_call"
	EventCallConnected          EventType = "call_connected"
	EventCallEnded              EventType = "call_ended"
	EventOperatorStatusChanged  EventType = "operator_status_changed"
	EventCampaignStatsUpdated   EventType = "campaign_stats_updated"
	EventOperatorListUpdated    EventType = "operator_list_updated"
	EventAlert                  EventType = "alert"
	EventError                  EventType = "error"
	EventPing                   EventType = "ping"
	EventPong                   EventType = "pong"
)

// Envelope is the wire format for every server-originated message:
// {"event":"<enum>","data":{...},"timestamp":"<RFC3339-UTC>"}.
type Envelope struct {
	Event     EventType   `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEnvelope stamps the current time in UTC, per spec §6's wire format.
func NewEnvelope(event EventType, data interface{}) Envelope {
	return Envelope{Event: event, Data: data, Timestamp: time.Now().UTC()}
}

// Role distinguishes the two audiences the fabric serves.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
)

// ClientAction is an inbound, client-initiated frame. Fields not
// relevant to a given action type are left zero.
type ClientAction struct {
	Ping             bool    `json:"ping,omitempty"`
	SetStatus        string  `json:"set_status,omitempty"`
	AcceptCall       string  `json:"accept_call,omitempty"`
	AcceptCallLead   string  `json:"accept_call_lead_id,omitempty"`
	EndCall          string  `json:"end_call,omitempty"`
	EndCallOutcome   string  `json:"end_call_outcome,omitempty"`
	SubscribeCampaign string `json:"subscribe_campaign,omitempty"`
	GetOperators     bool    `json:"get_operators,omitempty"`
	RefreshStats     string  `json:"refresh_stats,omitempty"`
	TestAlert        interface{} `json:"test_alert,omitempty"`
}
