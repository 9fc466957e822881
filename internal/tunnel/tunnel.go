package tunnel

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dzlatency/internal/execx"
	"dzlatency/internal/tabletext"
)

// Well-known states reported by the tunnel CLI. Anything else (including a
// failed or unparseable status call) is StateUnknown.
const (
	StateUp           = "up"
	StateDisconnected = "disconnected"
	StateUnknown      = "unknown"
)

const (
	statusMarker  = "Tunnel status"
	statusTimeout = 12 * time.Second
	toggleTimeout = 20 * time.Second
)

// State is one observation of the tunnel.
type State struct {
	Status string
	IsUp   bool
}

// Controller drives the tunnel CLI: status queries, best-effort
// connect/disconnect, and bounded waiting for a target state.
type Controller struct {
	r       execx.Runner
	bin     string
	profile string
	log     zerolog.Logger
}

func NewController(r execx.Runner, bin, profile string, log zerolog.Logger) *Controller {
	return &Controller{r: r, bin: bin, profile: profile, log: log}
}

// Status queries the tunnel CLI and parses its status table. Every failure
// mode degrades to StateUnknown; the caller re-verifies by polling anyway.
func (c *Controller) Status(ctx context.Context) State {
	res, err := c.r.Run(ctx, statusTimeout, c.bin, "status")
	if err != nil || res.TimedOut {
		return State{Status: StateUnknown}
	}
	row, ok := tabletext.FirstRow(res.Stdout, statusMarker)
	if !ok {
		return State{Status: StateUnknown}
	}
	status := strings.ToLower(row[strings.ToLower(statusMarker)])
	if status == "" {
		status = StateUnknown
	}
	return State{Status: status, IsUp: status == StateUp}
}

// Connect requests the tunnel to come up. Fire and forget: the command's
// own exit status is not trusted, state is confirmed via WaitFor.
func (c *Controller) Connect(ctx context.Context) {
	_, _ = c.r.Run(ctx, toggleTimeout, c.bin, "connect", c.profile)
}

// Disconnect requests the tunnel to go down. Fire and forget, like Connect.
func (c *Controller) Disconnect(ctx context.Context) {
	_, _ = c.r.Run(ctx, toggleTimeout, c.bin, "disconnect")
}

// WaitFor polls Status until target is observed or timeout elapses.
// Progress is logged on every poll. Returns false on timeout or cancellation.
func (c *Controller) WaitFor(ctx context.Context, target string, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		st := c.Status(ctx)
		if st.Status == target {
			return true
		}
		if time.Now().After(deadline) {
			c.log.Warn().
				Str("target", target).
				Str("last_seen", st.Status).
				Msg("timed out waiting for tunnel state")
			return false
		}
		c.log.Info().
			Str("target", target).
			Str("current", st.Status).
			Msg("waiting for tunnel state")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}
