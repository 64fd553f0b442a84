package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/perch/internal/catalog"
	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/history"
	"github.com/soyeahso/perch/internal/hooks"
	"github.com/soyeahso/perch/internal/logging"
	"github.com/soyeahso/perch/internal/selection"
	"github.com/soyeahso/perch/internal/version"
)

var (
	ErrClientClosed    = errors.New("client connection closed")
	ErrEmptyConfigPath = errors.New("empty config path")
)

const (
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 4 * 1024 * 1024
)

// Server is the perch gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *clientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	mu        sync.RWMutex
	configRaw map[string]any
	selection *selection.Manager
	avail     catalog.Availability

	// Selection storage, so Sync can reload the snapshot from disk
	// (set with WithSelection)
	selStore selection.TableStore
	stateDir string

	// Availability refresh; nil reuses the last known availability.
	refresh RefreshFunc

	// Selection audit log; nil disables history recording.
	events *history.Store

	// Lifecycle hooks; nil means none are configured.
	hooks *hooks.Manager

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption customizes a Server at construction time.
type ServerOption func(*Server)

// WithConfigRaw supplies the raw config map served over the config RPCs.
func WithConfigRaw(raw map[string]any) ServerOption {
	return func(s *Server) {
		s.configRaw = raw
	}
}

// WithSelection attaches a selection manager and its storage so the selection
// REST and RPC surfaces are served. dir is the state directory the manager was
// loaded from; Sync reloads the persisted snapshot from it.
func WithSelection(mgr *selection.Manager, store selection.TableStore, dir string) ServerOption {
	return func(s *Server) {
		s.selection = mgr
		s.selStore = store
		s.stateDir = dir
	}
}

// WithAvailability seeds the provider availability served until the next sync.
func WithAvailability(avail catalog.Availability) ServerOption {
	return func(s *Server) {
		s.avail = avail
	}
}

// WithRefresh sets the function Sync uses to rebuild availability.
func WithRefresh(fn RefreshFunc) ServerOption {
	return func(s *Server) {
		s.refresh = fn
	}
}

// WithHistory attaches the selection audit log.
func WithHistory(events *history.Store) ServerOption {
	return func(s *Server) {
		s.events = events
	}
}

// WithHooks wires lifecycle events to a hook manager.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a gateway server with the given options applied.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		clients:     newClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		configRaw:   make(map[string]any),
		authLimiter: newAuthRateLimiter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin validates Origin headers on upgrade requests. Requests
// without an Origin (CLI clients, same-origin pages) always pass; browser
// cross-origin requests must match the configured allowlist.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// Handle binds an RPC method name to its handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods lists the registered RPC method names, sorted for stable hello frames.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// resolveBindAddr computes the listen address from config. Unknown bind modes
// stay on loopback rather than silently exposing the gateway.
func resolveBindAddr(cfg config.GatewayConfig) string {
	port := strconv.Itoa(cfg.Port)
	switch cfg.Bind {
	case "lan", "auto":
		return net.JoinHostPort("0.0.0.0", port)
	case "custom":
		if cfg.CustomBindHost != "" {
			return net.JoinHostPort(cfg.CustomBindHost, port)
		}
		return net.JoinHostPort("0.0.0.0", port)
	default:
		return net.JoinHostPort("127.0.0.1", port)
	}
}

// Start serves HTTP and WebSocket traffic on the configured address,
// blocking until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := s.listen(addr)
	if err != nil {
		return err
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway listening")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	go s.shutdownOnCancel(ctx)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownOnCancel drains clients and stops the HTTP server once ctx ends.
func (s *Server) shutdownOnCancel(ctx context.Context) {
	<-ctx.Done()
	s.log.Info().Msg("gateway shutting down")
	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.clients.CloseAll()
	s.httpServer.Shutdown(shutdownCtx)
}

// listen opens the TCP listener, wrapping it in TLS when configured.
func (s *Server) listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if !s.cfg.Gateway.TLS.Enabled {
		if s.cfg.Gateway.Bind != "loopback" {
			s.log.Warn().Msg("TLS is not enabled — credentials will be transmitted in cleartext")
		}
		return ln, nil
	}

	cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}
	s.log.Info().Msg("TLS enabled")
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// Addr reports the configured listen address, empty before Start.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket runs a connection end to end: rate check, upgrade,
// handshake, then the read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade error")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket connection opened")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake rejected")
		s.authLimiter.recordFailure(conn.RemoteAddr().String())
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake authenticates a new socket: challenge out, connect in, hello-ok out.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	if err := sendChallenge(conn); err != nil {
		return nil, err
	}

	frame, params, err := awaitConnect(conn)
	if err != nil {
		return nil, err
	}

	authResult := s.auth.Authorize(params.Auth)
	if !authResult.OK {
		sendErrorAndClose(conn, frame.ID, "unauthorized", authResult.Reason)
		return nil, fmt.Errorf("auth failed: %s", authResult.Reason)
	}

	// Handshake done; frames are read without a deadline from here on.
	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, s.log.Sub("ws"))
	if err := s.sendHelloOK(conn, frame.ID, client.ConnID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("authMethod", authResult.Method).
		Msg("client connected")

	return client, nil
}

// sendChallenge opens the handshake with a nonce event.
func sendChallenge(conn *websocket.Conn) error {
	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return fmt.Errorf("sending challenge: %w", err)
	}
	return nil
}

// awaitConnect reads and validates the client's connect request.
func awaitConnect(conn *websocket.Conn) (*Frame, *ConnectParams, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}
	if len(frame.Params) == 0 {
		sendErrorAndClose(conn, frame.ID, "invalid_params", "missing connect params")
		return nil, nil, errors.New("connect request without params")
	}

	var params ConnectParams
	if err := frame.DecodeParams(&params); err != nil {
		sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
		return nil, nil, fmt.Errorf("parsing connect params: %w", err)
	}
	return &frame, &params, nil
}

// sendHelloOK completes the handshake. The response carries the live
// selection so clients have state before the first event arrives.
func (s *Server) sendHelloOK(conn *websocket.Conn, reqID, connID string) error {
	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  connID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventConnectChallenge, EventSelectionChanged, EventSyncCompleted},
		},
		Policy: ServerPolicy{
			MaxPayload:       maxMessageSize,
			MaxBufferedBytes: 4 * maxMessageSize,
			TickIntervalMs:   30000,
		},
	}
	if view, err := s.SelectionState(); err == nil {
		hello.Selection = &view
	}

	resp, err := NewResponse(reqID, hello)
	if err != nil {
		return fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}
	return nil
}

// readLoop consumes frames until the client goes away.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			s.logDisconnect(client, err)
			return
		}
		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("dropping non-request frame")
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) logDisconnect(client *Client, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Debug().Str("connId", client.ConnID).Msg("client disconnected")
		return
	}
	s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("socket read failed")
}

// dispatch routes a request frame to its registered handler.
func (s *Server) dispatch(client *Client, frame Frame) {
	if handler, ok := s.handlers[frame.Method]; ok {
		handler(&RequestContext{Client: client, Frame: frame, Server: s})
		return
	}
	client.RespondError(frame.ID, ErrorShape{
		Code:    "method_not_found",
		Message: "unknown method: " + frame.Method,
	})
}

// sendErrorAndClose rejects a pre-auth frame and drops the socket.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
