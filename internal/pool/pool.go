// Package pool implements the per-worker backend connection pool.
//
// Each worker owns exactly one Pool: a fixed-capacity array of slots, each
// holding one live backend connection. The pool drives connection
// establishment, failure detection and self-healing reconnection. All slot
// mutation happens on the owning worker's reactor loop; connection events
// arriving from I/O goroutines are marshalled there first.
//
// The pool's policy is to always hold capacity live connections: every
// terminal event — a failed connect attempt or any disconnect, graceful or
// not — arms exactly one fixed-delay reconnect timer. There is no backoff,
// no jitter and no cap on pending timers, so a sustained outage produces
// one attempt per lost slot every ReconnectDelay.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/mkarls/redisgw/internal/config"
	"github.com/mkarls/redisgw/internal/resp"
)

// ReconnectDelay is the fixed wait before a lost slot is retried.
const ReconnectDelay = 100 * time.Millisecond

// Errors
var (
	ErrNoConnections = errors.New("no live backend connections")
	ErrStopped       = errors.New("worker stopped")
)

// Reactor is the slice of the owning worker the pool needs: task
// submission and one-shot timers, both dispatched on the worker loop.
type Reactor interface {
	Submit(fn func()) bool
	AfterFunc(d time.Duration, fn func())
}

// Conn is one asynchronous backend connection as seen by the pool.
type Conn interface {
	ID() int64
	Ready() bool
	Command(cb func(*resp.Reply, error), args ...string) error
	Close()
}

// Observer receives the outcome of connect attempts and later disconnects.
// The pool registers itself as the observer of every attempt it starts.
type Observer interface {
	OnConnected(c Conn, err error)
	OnDisconnected(c Conn, err error)
}

// DialFunc starts one asynchronous connect attempt, registering obs as the
// attempt's observer, and returns the new connection handle immediately.
type DialFunc func(obs Observer) Conn

// Deps carries the pool's collaborators.
type Deps struct {
	Reactor Reactor
	Dial    DialFunc
	Gate    *AuthGate
	Auth    *config.AuthConfig // nil disables the auth handshake
	Logger  *slog.Logger
	// MaxLine bounds diagnostic log lines that embed backend error text.
	MaxLine int
}

// Pool is a fixed-capacity set of live backend connections owned by one
// worker. All fields below deps are touched only on the reactor loop.
type Pool struct {
	deps  Deps
	delay time.Duration

	slots    []Conn
	database int
	// attempts tracks in-flight connects whose failure should arm a
	// reconnect timer (the attempt marker of Connect).
	attempts map[Conn]bool
	// next is the round-robin cursor for Acquire.
	next int
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Capacity int
	Ready    int
}

// New allocates a pool with capacity empty slots bound to the given
// worker reactor. No connections are created yet; call Connect to begin
// filling the pool.
func New(capacity int, deps Deps) *Pool {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pool{
		deps:     deps,
		delay:    ReconnectDelay,
		slots:    make([]Conn, capacity),
		attempts: make(map[Conn]bool),
	}
}

// Capacity returns the fixed slot count.
func (p *Pool) Capacity() int { return len(p.slots) }

// Connect starts one asynchronous connect attempt against the configured
// backend, selecting database db once established. It returns immediately;
// the outcome arrives via OnConnected. When attempt is set, a failed
// attempt arms a reconnect timer. Each call is independent: there is no
// dedup against other in-flight attempts for this pool.
//
// Connect must be called on the reactor loop.
func (p *Pool) Connect(db int, attempt bool) {
	p.database = db
	c := p.deps.Dial(p)
	p.attempts[c] = attempt
}

// OnConnected is invoked by the connection layer with the outcome of an
// attempt. Safe to call from any goroutine.
func (p *Pool) OnConnected(c Conn, err error) {
	p.deps.Reactor.Submit(func() { p.handleConnected(c, err) })
}

// OnDisconnected is invoked by the connection layer when a connection is
// gone; err is nil for a deliberate close. Safe to call from any goroutine.
func (p *Pool) OnDisconnected(c Conn, err error) {
	p.deps.Reactor.Submit(func() { p.handleDisconnected(c, err) })
}

func (p *Pool) handleConnected(c Conn, err error) {
	attempt, tracked := p.attempts[c]
	delete(p.attempts, c)

	if err != nil || !c.Ready() {
		// Failed attempt: no slot was ever occupied.
		if !tracked || attempt {
			p.scheduleReconnect()
		}
		p.deps.Logger.Debug("connect attempt failed", "conn_id", c.ID(), "error", err)
		return
	}

	// First-fit scan for a free slot. When every slot is taken — a race
	// among concurrently completing attempts — the connection is kept
	// alive but untracked; this is a documented lossy edge, not an error.
	placed := false
	for i, s := range p.slots {
		if s == nil {
			p.slots[i] = c
			placed = true
			break
		}
	}
	if !placed {
		p.deps.Logger.Debug("pool full, connection left untracked", "conn_id", c.ID())
	}

	p.handshake(c)
}

func (p *Pool) handleDisconnected(c Conn, err error) {
	delete(p.attempts, c)

	if err != nil {
		p.deps.Logger.Error(formatBounded("Error disconnecting: %s", err.Error(), p.deps.MaxLine))
	}

	// Release by connection identity, not slot index: the disconnect
	// event knows only the connection.
	for i, s := range p.slots {
		if s == c {
			p.slots[i] = nil
			break
		}
	}

	// Graceful and error disconnects are treated identically; the pool
	// always tries to get back to capacity.
	p.scheduleReconnect()
}

// scheduleReconnect arms a one-shot timer on the owning reactor. The timer
// discards itself on firing and issues a fresh connect attempt against the
// same database index.
func (p *Pool) scheduleReconnect() {
	p.deps.Reactor.AfterFunc(p.delay, func() {
		p.Connect(p.database, true)
	})
}

// handshake authenticates the new connection when credentials are
// configured and selects the pool's database. Runs after the slot is
// occupied; an auth failure leaves the connection in the pool.
func (p *Pool) handshake(c Conn) {
	if a := p.deps.Auth; a != nil {
		cb := func(reply *resp.Reply, err error) {
			if err != nil {
				// Connection torn down before the handshake
				// resolved; the gate is not consulted.
				return
			}
			p.OnAuthComplete(c, reply)
		}
		if a.Legacy() {
			c.Command(cb, "AUTH", a.Password)
		} else {
			c.Command(cb, "AUTH", a.Username, a.Password)
		}
	}
	if p.database != 0 {
		c.Command(nil, "SELECT", strconv.Itoa(p.database))
	}
}

// OnAuthComplete funnels one authentication outcome through the shared
// gate. A nil reply is a no-op.
func (p *Pool) OnAuthComplete(c Conn, reply *resp.Reply) {
	p.deps.Gate.Complete(reply, p.deps.Logger, p.deps.MaxLine)
}

// Disconnect tears down c, which drives the OnDisconnected path and so
// frees its slot and schedules a replacement.
func (p *Pool) Disconnect(c Conn) {
	if c != nil {
		c.Close()
	}
}

// Acquire returns a live connection, rotating round-robin across occupied
// slots. The lookup runs on the owning reactor; Acquire itself may be
// called from any goroutine.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	ch := make(chan Conn, 1)
	ok := p.deps.Reactor.Submit(func() { ch <- p.nextLive() })
	if !ok {
		return nil, ErrStopped
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-ch:
		if c == nil {
			return nil, ErrNoConnections
		}
		return c, nil
	}
}

// Stats snapshots the pool via the owning reactor.
func (p *Pool) Stats(ctx context.Context) (Stats, error) {
	ch := make(chan Stats, 1)
	ok := p.deps.Reactor.Submit(func() {
		ch <- Stats{Capacity: len(p.slots), Ready: p.readyCount()}
	})
	if !ok {
		return Stats{}, ErrStopped
	}

	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case s := <-ch:
		return s, nil
	}
}

func (p *Pool) nextLive() Conn {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		c := p.slots[(p.next+i)%n]
		if c != nil && c.Ready() {
			p.next = (p.next + i + 1) % n
			return c
		}
	}
	return nil
}

func (p *Pool) readyCount() int {
	ready := 0
	for _, c := range p.slots {
		if c != nil && c.Ready() {
			ready++
		}
	}
	return ready
}
