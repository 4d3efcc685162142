package eventbus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one authenticated connection to either the operator or
// supervisor channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	Role        Role
	PrincipalID string

	mu                sync.Mutex
	subscribedCampaign string
}

// ActionHandler receives client-initiated actions decoded off an
// operator/supervisor connection (spec §4.H). The Hub only frames and
// routes bytes; actions that touch core state are delegated here so
// eventbus stays free of an orchestrator/operator import.
type ActionHandler interface {
	OnSetStatus(principalID, status string)
	OnAcceptCall(principalID, callID, leadID string)
	OnEndCall(principalID, outcome string)
	OnGetOperators(principalID string)
	OnRefreshStats(principalID, campaignID string)
}

// Hub maintains the live connection registry and fans out
// server-originated events by audience, grounded on the platform's
// Hub register/unregister/broadcast channel pattern.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	handler ActionHandler
}

// SetActionHandler wires the delegate invoked for client actions
// beyond ping/subscribe. Must be called before Accept starts serving
// connections.
func (h *Hub) SetActionHandler(handler ActionHandler) {
	h.handler = handler
}

// NewHub constructs an empty Hub; call Run in a goroutine to start its
// dispatch loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the Hub's single-goroutine event loop: all registry mutation
// happens here, so no external lock is needed for register/unregister.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		}
	}
}

// Accept upgrades an HTTP request to a websocket connection and
// registers the resulting client under the given role/principal.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, role Role, principalID string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 256),
		Role:        role,
		PrincipalID: principalID,
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *Client) sendEnvelope(env Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.hub.unregister <- c
		return false
	}
}

func (c *Client) SubscribeCampaign(campaignID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedCampaign = campaignID
}

func (c *Client) subscribedTo(campaignID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribedCampaign == "" || c.subscribedCampaign == campaignID
}

// snapshot returns a point-in-time copy of the client list so
// broadcast loops never mutate the registry map while iterating it
// (spec §5: "broadcast_to_* iterates a snapshot; failed sends
// schedule a later removal outside the iteration").
func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// BroadcastToSupervisors sends an event to every supervisor connection.
func (h *Hub) BroadcastToSupervisors(event EventType, data interface{}) {
	env := NewEnvelope(event, data)
	for _, c := range h.snapshot() {
		if c.Role == RoleSupervisor {
			c.sendEnvelope(env)
		}
	}
}

// BroadcastToCampaignSupervisors sends to supervisors subscribed to
// campaignID (or unsubscribed, i.e. receiving everything).
func (h *Hub) BroadcastToCampaignSupervisors(campaignID string, event EventType, data interface{}) {
	env := NewEnvelope(event, data)
	for _, c := range h.snapshot() {
		if c.Role == RoleSupervisor && c.subscribedTo(campaignID) {
			c.sendEnvelope(env)
		}
	}
}

// SendToOperator delivers an event to exactly one operator principal.
func (h *Hub) SendToOperator(operatorID string, event EventType, data interface{}) bool {
	env := NewEnvelope(event, data)
	for _, c := range h.snapshot() {
		if c.Role == RoleOperator && c.PrincipalID == operatorID {
			return c.sendEnvelope(env)
		}
	}
	return false
}

// SendToOperatorAndSupervisors delivers an event to one operator and
// fans the same event out to all supervisors, per spec §4.H's
// operator_status_changed routing rule.
func (h *Hub) SendToOperatorAndSupervisors(operatorID string, event EventType, data interface{}) {
	h.SendToOperator(operatorID, event, data)
	h.BroadcastToSupervisors(event, data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var action ClientAction
		if json.Unmarshal(message, &action) != nil {
			continue
		}
		c.handleAction(action)
	}
}

func (c *Client) handleAction(action ClientAction) {
	switch {
	case action.Ping:
		c.sendEnvelope(NewEnvelope(EventPong, nil))
	case action.SubscribeCampaign != "":
		c.SubscribeCampaign(action.SubscribeCampaign)
	}

	if c.hub.handler == nil {
		return
	}
	switch {
	case action.SetStatus != "":
		c.hub.handler.OnSetStatus(c.PrincipalID, action.SetStatus)
	case action.AcceptCall != "":
		c.hub.handler.OnAcceptCall(c.PrincipalID, action.AcceptCall, action.AcceptCallLead)
	case action.EndCall != "":
		c.hub.handler.OnEndCall(c.PrincipalID, action.EndCallOutcome)
	case action.GetOperators:
		c.hub.handler.OnGetOperators(c.PrincipalID)
	case action.RefreshStats != "":
		c.hub.handler.OnRefreshStats(c.PrincipalID, action.RefreshStats)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects the client from the server side.
func (c *Client) Close() {
	c.hub.unregister <- c
}
