package pool

import (
	"log/slog"
	"sync"

	"github.com/mkarls/redisgw/internal/resp"
)

// AuthGate records, process-wide, whether an authentication outcome has
// already been logged. It is created once by the server and shared by
// reference with every pool; arbitrarily many concurrent handshakes log at
// most one line between them. Which outcome wins is decided by lock order,
// not by attempt start order.
type AuthGate struct {
	mu     sync.Mutex
	logged bool
}

// NewAuthGate returns an unconsumed gate.
func NewAuthGate() *AuthGate {
	return &AuthGate{}
}

// Complete inspects one handshake reply under the gate's lock. A nil reply
// (handshake never resolved) is a no-op. An error reply logs
// "Authentication failed", a status reply logs "Authentication succeeded";
// either consumes the gate permanently. Any other reply kind neither logs
// nor consumes it.
func (g *AuthGate) Complete(reply *resp.Reply, logger *slog.Logger, maxLine int) {
	if reply == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.logged {
		return
	}

	switch reply.Type {
	case resp.TypeError:
		logger.Error(formatBounded("Authentication failed: %s", reply.Str, maxLine))
	case resp.TypeStatus:
		logger.Info(formatBounded("Authentication succeeded: %s", reply.Str, maxLine))
	default:
		return
	}

	g.logged = true
}
