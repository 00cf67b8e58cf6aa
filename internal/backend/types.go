package backend

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mkarls/redisgw/internal/resp"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection closed")
)

// State is the lifecycle phase of a connection. A connection moves forward
// through these states only; a Terminated connection is never reused.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Handler receives connection lifecycle events. Calls arrive on the
// connection's own goroutines; implementations are responsible for moving
// work onto their own serialization domain.
type Handler interface {
	// OnConnected reports the outcome of a dial. err is nil on success.
	OnConnected(c *Conn, err error)

	// OnDisconnected reports that the connection is gone. err is nil for
	// a deliberate close and non-nil when the transport failed.
	OnDisconnected(c *Conn, err error)
}

// PushHandler receives replies that arrive with no pending command, such as
// pub/sub messages. Connections whose handler does not implement it drop
// pushes.
type PushHandler interface {
	OnPush(c *Conn, reply *resp.Reply)
}

// Options configures a single backend connection.
type Options struct {
	Addr         string        // host:port of the backend
	DialTimeout  time.Duration // zero means OS default
	WriteTimeout time.Duration // write deadline for commands
	KeepAlive    time.Duration // TCP keep-alive period, zero disables
	Logger       *slog.Logger
}

// DefaultOptions returns sensible defaults for everything but Addr.
func DefaultOptions() Options {
	return Options{
		WriteTimeout: 5 * time.Second,
	}
}
