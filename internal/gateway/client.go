package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/perch/internal/logging"
)

// writeWait bounds how long a single frame write may block before the
// connection is treated as dead.
const writeWait = 10 * time.Second

// Client is one authenticated WebSocket connection.
type Client struct {
	ConnID      string
	Info        ClientInfo
	ConnectedAt time.Time

	conn *websocket.Conn
	log  *logging.Logger

	mu     sync.Mutex // gorilla permits one concurrent writer; mu serializes Send
	closed bool
}

// NewClient wraps a freshly authenticated connection.
func NewClient(conn *websocket.Conn, info ClientInfo, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Info:        info,
		ConnectedAt: time.Now(),
		conn:        conn,
		log:         log,
	}
}

// Send marshals frame and writes it as a single text message.
func (c *Client) Send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendEvent pushes an event frame to this client.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	frame, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, result any) error {
	frame, err := NewResponse(reqID, result)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, e ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, e))
}

// ReadFrame blocks until the next frame arrives on the socket.
func (c *Client) ReadFrame() (Frame, error) {
	var frame Frame
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, err
	}
	return frame, nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// clientRegistry tracks connected clients for broadcast and shutdown.
type clientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

func newClientRegistry(log *logging.Logger) *clientRegistry {
	return &clientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a client under its connection ID.
func (r *clientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	total := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Int("total", total).Msg("client connected")
}

// Remove drops a client from the registry without closing it.
func (r *clientRegistry) Remove(connID string) {
	r.mu.Lock()
	delete(r.clients, connID)
	total := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", connID).Int("total", total).Msg("client disconnected")
}

// Get returns a client by connection ID.
func (r *clientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *clientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast sends an event to every connected client. The recipient set is
// snapshotted first so a slow socket cannot hold the registry lock.
func (r *clientRegistry) Broadcast(event string, payload any, seq int64) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.SendEvent(event, payload, seq); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Msg("broadcast send failed")
		}
	}
}

// CloseAll closes every connection and empties the registry.
func (r *clientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
