package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/soyeahso/perch/internal/selection"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist);
// notably providers (api keys) and hooks (shell commands) stay out.
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.allowedOrigins",
	"logging",
	"history",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /v1/selection", s.requireAuth(s.handleSelectionGet))
	mux.HandleFunc("POST /v1/selection/provider", s.requireAuth(s.handleProviderSet))
	mux.HandleFunc("POST /v1/selection/agent", s.requireAuth(s.handleAgentSet))
	mux.HandleFunc("POST /v1/sync", s.requireAuth(s.handleSync))
	mux.HandleFunc("GET /v1/providers", s.requireAuth(s.handleProvidersGet))
	mux.HandleFunc("GET /v1/history", s.requireAuth(s.handleHistoryGet))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("selection.get", s.rpcSelectionGet)
	s.Handle("selection.setProvider", s.rpcSetProvider)
	s.Handle("selection.setAgent", s.rpcSetAgent)
	s.Handle("selection.sync", s.rpcSync)
	s.Handle("providers.list", s.rpcProvidersList)
	s.Handle("history.list", s.rpcHistoryList)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
}

// --- REST handlers ---

// requireAuth guards REST endpoints. Clients send the gateway token (or
// password, depending on the configured mode) as a bearer credential.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || value == "" {
			writeJSONError(w, http.StatusUnauthorized, "bearer credentials required")
			return
		}
		result := s.auth.Authorize(&ConnectAuth{Token: value, Password: value})
		if !result.OK {
			s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", result.Reason).Msg("rest auth failed")
			writeJSONError(w, http.StatusUnauthorized, result.Reason)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSelectionGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.SelectionState()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProviderSet(w http.ResponseWriter, r *http.Request) {
	var p setProviderParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	view, err := s.SetProvider(r.Context(), p.Provider, "gateway")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAgentSet(w http.ResponseWriter, r *http.Request) {
	var p setAgentParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	role, ok := selection.ParseRole(p.Role)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "role must be chat or command, got "+strconv.Quote(p.Role))
		return
	}
	view, err := s.SetAgent(r.Context(), p.Provider, role, p.Agent, "gateway")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	view, err := s.Sync(r.Context(), "gateway")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProvidersGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.AvailableProviders()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	events, err := s.RecentEvents(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps selection service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSelection), errors.Is(err, ErrNoHistory):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- RPC handlers ---

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Provider: s.currentProvider(),
	})
}

func (s *Server) rpcSelectionGet(rc *RequestContext) {
	view, err := s.SelectionState()
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(view)
}

type setProviderParams struct {
	Provider string `json:"provider"`
}

func (s *Server) rpcSetProvider(rc *RequestContext) {
	var p setProviderParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	view, err := s.SetProvider(context.Background(), p.Provider, "gateway")
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(view)
}

type setAgentParams struct {
	Provider string `json:"provider"`
	Role     string `json:"role"`
	Agent    string `json:"agent"`
}

func (s *Server) rpcSetAgent(rc *RequestContext) {
	var p setAgentParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	role, ok := selection.ParseRole(p.Role)
	if !ok {
		rc.RespondError("invalid_params", "role must be chat or command, got "+strconv.Quote(p.Role))
		return
	}
	view, err := s.SetAgent(context.Background(), p.Provider, role, p.Agent, "gateway")
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(view)
}

func (s *Server) rpcSync(rc *RequestContext) {
	view, err := s.Sync(context.Background(), "gateway")
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(view)
}

func (s *Server) rpcProvidersList(rc *RequestContext) {
	view, err := s.AvailableProviders()
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(view)
}

type historyListParams struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) rpcHistoryList(rc *RequestContext) {
	var p historyListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	events, err := s.RecentEvents(p.Limit)
	if err != nil {
		respondServiceError(rc, err)
		return
	}
	rc.Respond(map[string]any{"events": events})
}

// respondServiceError maps selection service errors onto RPC error codes.
func respondServiceError(rc *RequestContext, err error) {
	switch {
	case errors.Is(err, ErrNoSelection), errors.Is(err, ErrNoHistory):
		rc.RespondError("unavailable", err.Error())
	default:
		rc.RespondError("internal", err.Error())
	}
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "access denied for config path: "+p.Key)
		return
	}

	s.mu.RLock()
	raw := s.configRaw
	s.mu.RUnlock()

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	val, ok := getValueAtPathRPC(raw, path)
	if !ok {
		rc.RespondError("not_found", "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

type configSetParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError("invalid_params", "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError("forbidden", "cannot modify config path: "+p.Key)
		return
	}

	path, err := parseConfigPathForRPC(p.Key)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	setValueAtPathRPC(s.configRaw, path, p.Value)
	s.mu.Unlock()

	rc.Respond(map[string]any{"key": p.Key, "value": p.Value})
}

// Helpers that mirror config.ParseConfigPath / GetValueAtPath without importing config
// to avoid circular dependencies — they operate on raw maps only.

func parseConfigPathForRPC(raw string) ([]string, error) {
	if raw == "" {
		return nil, ErrEmptyConfigPath
	}
	var parts []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '.' {
			if i == start {
				return nil, ErrEmptyConfigPath
			}
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return parts, nil
}

func getValueAtPathRPC(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setValueAtPathRPC(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}
