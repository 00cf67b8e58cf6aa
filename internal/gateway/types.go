package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mkarls/redisgw/internal/backend"
	"github.com/mkarls/redisgw/internal/pool"
	"github.com/mkarls/redisgw/internal/resp"
)

// Errors
var (
	ErrEmptyCommand = errors.New("empty command")
)

// Executor runs one backend command on a pooled connection.
type Executor interface {
	Execute(ctx context.Context, args []string) (*resp.Reply, error)
}

// StatsFunc snapshots every worker pool for the health endpoint.
type StatsFunc func(ctx context.Context) ([]pool.Stats, error)

// DialFunc opens a dedicated backend connection for a WebSocket session.
// Sessions do not borrow pooled connections because subscribe mode turns
// the link into a push stream.
type DialFunc func(h backend.Handler) *backend.Conn

// Config wires the gateway handler.
type Config struct {
	Executor       Executor
	Stats          StatsFunc
	Dial           DialFunc
	Logger         *slog.Logger
	MaxRequestSize int64
	WebSockets     bool
}
