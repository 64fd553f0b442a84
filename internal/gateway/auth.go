package gateway

import (
	"crypto/subtle"
	"os"

	"github.com/soyeahso/perch/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password"
	Reason string `json:"reason,omitempty"`
}

func authFailure(reason string) AuthResult {
	return AuthResult{OK: false, Reason: reason}
}

// ResolvedAuth is the gateway's effective credential set after merging config
// with the PERCH_GATEWAY_TOKEN / PERCH_GATEWAY_PASSWORD environment fallbacks.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth merges the configured auth section with environment fallbacks.
// Config values win; the mode defaults to password only when a password is
// the sole credential present.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    cfg.Token,
		Password: cfg.Password,
	}
	if auth.Token == "" {
		auth.Token = os.Getenv("PERCH_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("PERCH_GATEWAY_PASSWORD")
	}
	if auth.Mode == "" {
		auth.Mode = "token"
		if auth.Password != "" {
			auth.Mode = "password"
		}
	}
	return auth
}

// Authorize checks client credentials against the resolved server auth.
func (a ResolvedAuth) Authorize(creds *ConnectAuth) AuthResult {
	if creds == nil {
		return authFailure("no credentials provided")
	}

	switch a.Mode {
	case "token":
		return a.authorizeToken(creds.Token)
	case "password":
		return a.authorizePassword(creds.Password)
	default:
		return authFailure("unknown auth mode: " + a.Mode)
	}
}

func (a ResolvedAuth) authorizeToken(token string) AuthResult {
	switch {
	case a.Token == "":
		return authFailure("server token not configured")
	case token == "":
		return authFailure("token required")
	case !safeEqual(token, a.Token):
		return authFailure("token_mismatch")
	}
	return AuthResult{OK: true, Method: "token"}
}

func (a ResolvedAuth) authorizePassword(password string) AuthResult {
	switch {
	case a.Password == "":
		return authFailure("server password not configured")
	case password == "":
		return authFailure("password required")
	case !safeEqual(password, a.Password):
		return authFailure("password_mismatch")
	}
	return AuthResult{OK: true, Method: "password"}
}

// safeEqual compares secrets in constant time, including the length check,
// so timing reveals neither content nor secret length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
