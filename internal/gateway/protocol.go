package gateway

import "encoding/json"

// ProtocolVersion is the wire protocol generation this server speaks.
// Clients advertise the range they accept in the connect request.
const ProtocolVersion = 1

// Wire frame discriminators.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Events pushed to connected clients. The challenge is the one event a
// socket sees before it has authenticated; the rest fire on state changes.
const (
	EventConnectChallenge = "connect.challenge"
	EventSelectionChanged = "selection.changed"
	EventSyncCompleted    = "sync.completed"
)

// Frame is the envelope shared by every WebSocket message. Type selects
// which of the remaining fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// Set on requests.
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Set on responses.
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`

	// Set on events.
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
}

// DecodeParams unmarshals the request params into v. A frame without
// params leaves v untouched.
func (f Frame) DecodeParams(v any) error {
	if len(f.Params) == 0 {
		return nil
	}
	return json.Unmarshal(f.Params, v)
}

// ErrorShape carries a structured failure inside a response frame.
// Retryable plus RetryAfter let clients implement polite backoff.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

// NewRequest builds a request frame with params marshaled to raw JSON.
func NewRequest(id, method string, params any) (Frame, error) {
	f := Frame{Type: FrameTypeRequest, ID: id, Method: method}
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	f.Params = raw
	return f, nil
}

// NewResponse builds a success response carrying the payload.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse builds a failed response; the error shape travels in
// place of a payload.
func NewErrorResponse(id string, shape ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &shape}
}

// NewEvent builds a server-push event frame. Seq orders events within a
// connection; the pre-auth challenge is always seq 0.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Seq: seq, Payload: raw}, nil
}

// ConnectParams is the body of the "connect" request that opens every
// session.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
	Caps        []string     `json:"caps,omitempty"`
	Locale      string       `json:"locale,omitempty"`
	UserAgent   string       `json:"userAgent,omitempty"`
}

// ClientInfo describes the connecting client to the server.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"` // "cli" | "tui" | "app"
	InstanceID  string `json:"instanceId,omitempty"`
}

// ConnectAuth carries credentials inside the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the payload of a successful connect response. Selection
// carries the live state at connect time when the server has one, so
// clients render the current choice without an extra round trip.
type HelloOK struct {
	Protocol  int            `json:"protocol"`
	Server    ServerInfo     `json:"server"`
	Features  Features       `json:"features"`
	Policy    ServerPolicy   `json:"policy"`
	Selection *SelectionView `json:"selection,omitempty"`
}

// ServerInfo identifies the gateway build behind a connection.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Host    string `json:"host,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises the RPC methods and events this server offers.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy tells clients the limits the server enforces.
type ServerPolicy struct {
	MaxPayload       int `json:"maxPayload"`
	MaxBufferedBytes int `json:"maxBufferedBytes"`
	TickIntervalMs   int `json:"tickIntervalMs"`
}
