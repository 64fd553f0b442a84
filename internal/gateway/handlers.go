package gateway

import "net/http"

// HealthResponse is the body of both health surfaces. The public HTTP
// endpoint reports status alone; the RPC method behind auth fills in the
// rest.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Clients  int    `json:"clients,omitempty"`
	Provider string `json:"provider,omitempty"` // active provider, when selection is attached
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler services one RPC request frame.
type RequestHandler func(ctx *RequestContext)

// RequestContext bundles the frame being served with the client that sent
// it and the server it arrived on.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response for this request.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends a failed response with the given code and message.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message})
}

// Params decodes the request params into target.
func (rc *RequestContext) Params(target any) error {
	return rc.Frame.DecodeParams(target)
}
