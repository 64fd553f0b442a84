package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/perch/internal/config"
)

// defaultCommandTimeout bounds hook commands that set no timeout.
const defaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs a shell command when the event
// fires. The payload reaches the command through the PERCH_EVENT and
// PERCH_DATA (JSON) environment variables.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		data, err := json.Marshal(p.Data)
		if err != nil {
			data = []byte("{}")
		}

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		cmd.Env = append(os.Environ(),
			"PERCH_EVENT="+p.Event,
			"PERCH_DATA="+string(data),
		)

		out, err := cmd.CombinedOutput()
		if err != nil {
			msg := strings.TrimSpace(string(out))
			if msg == "" {
				msg = err.Error()
			}
			return fmt.Errorf("hook command %q: %s", command, msg)
		}
		return nil
	}
}

// RegisterConfigured wires configured hook commands into the manager.
func RegisterConfigured(m *Manager, cfg config.HooksConfig) {
	register := func(event string, entries []config.HookEntry) {
		for i, h := range entries {
			if h.Command == "" {
				continue
			}
			name := fmt.Sprintf("config[%d]", i)
			m.On(event, name, CommandHandler(h.Command, time.Duration(h.Timeout)*time.Millisecond))
		}
	}

	register(EventProviderChanged, cfg.ProviderChanged)
	register(EventAgentChanged, cfg.AgentChanged)
	register(EventSyncCompleted, cfg.SyncCompleted)
	register(EventStateSaved, cfg.StateSaved)
	register(EventGatewayStart, cfg.GatewayStart)
	register(EventGatewayStop, cfg.GatewayStop)
}
