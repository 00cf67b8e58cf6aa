// Package backend implements the asynchronous client side of one link to
// the key-value backend.
//
// A Conn is created per connect attempt and never reused: Dial returns
// immediately and the outcome is delivered to the Handler later. Commands
// are pipelined; replies are matched to callbacks in FIFO order. Replies
// with no pending command are pushes (pub/sub) and go to the PushHandler
// when the Handler implements it.
package backend

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkarls/redisgw/internal/resp"
)

var nextConnID int64

// Conn is one asynchronous connection to the backend.
type Conn struct {
	id      int64
	opts    Options
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	nc      net.Conn
	pending []func(*resp.Reply, error)

	// Write serialization
	writeMu sync.Mutex
}

// Dial starts a connection attempt and returns immediately. The outcome
// arrives as handler.OnConnected on a goroutine owned by the connection.
func Dial(opts Options, handler Handler) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		id:      atomic.AddInt64(&nextConnID, 1),
		opts:    opts,
		handler: handler,
		state:   StateConnecting,
	}
	c.logger = logger.With("conn_id", c.id)

	go c.dial()
	return c
}

// ID returns the process-unique connection number.
func (c *Conn) ID() int64 { return c.id }

// State returns the current lifecycle phase.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the connection can accept commands.
func (c *Conn) Ready() bool {
	return c.State() == StateConnected
}

func (c *Conn) dial() {
	var nc net.Conn
	var err error
	if c.opts.DialTimeout > 0 {
		nc, err = net.DialTimeout("tcp", c.opts.Addr, c.opts.DialTimeout)
	} else {
		nc, err = net.Dial("tcp", c.opts.Addr)
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateTerminated
		c.mu.Unlock()
		c.handler.OnConnected(c, err)
		return
	}

	if c.opts.KeepAlive > 0 {
		if tc, ok := nc.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(c.opts.KeepAlive)
		}
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while the dial was in flight.
		c.state = StateTerminated
		c.mu.Unlock()
		nc.Close()
		c.handler.OnDisconnected(c, nil)
		return
	}
	c.nc = nc
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug("backend connected", "addr", c.opts.Addr)
	c.handler.OnConnected(c, nil)

	c.readLoop(nc)
}

// Command sends one command asynchronously. cb receives the matching reply
// or the transport error that killed the connection; a nil cb discards the
// reply. Command never blocks on the reply.
func (c *Conn) Command(cb func(*resp.Reply, error), args ...string) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if cb == nil {
		cb = func(*resp.Reply, error) {}
	}
	c.pending = append(c.pending, cb)
	nc := c.nc
	c.mu.Unlock()

	buf := resp.AppendCommand(nil, args...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.opts.WriteTimeout > 0 {
		nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := nc.Write(buf); err != nil {
		// The read loop will observe the broken socket and run the
		// disconnect path; the queued callback is failed there.
		return err
	}
	return nil
}

// Do sends one command and waits for its reply.
func (c *Conn) Do(ctx context.Context, args ...string) (*resp.Reply, error) {
	type result struct {
		reply *resp.Reply
		err   error
	}
	ch := make(chan result, 1)

	err := c.Command(func(reply *resp.Reply, err error) {
		ch <- result{reply, err}
	}, args...)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.reply, res.err
	}
}

// Close tears the connection down. The disconnect is reported to the
// handler as deliberate (nil error).
func (c *Conn) Close() {
	c.mu.Lock()
	switch c.state {
	case StateDisconnecting, StateTerminated:
		c.mu.Unlock()
		return
	case StateConnecting:
		// No socket yet; the dial goroutine finishes the teardown.
		c.state = StateDisconnecting
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting
	nc := c.nc
	c.mu.Unlock()

	// Unblocks the read loop, which reports the disconnect.
	nc.Close()
}

func (c *Conn) readLoop(nc net.Conn) {
	r := resp.NewReader(nc)

	for {
		reply, err := r.ReadReply()
		if err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		var cb func(*resp.Reply, error)
		if len(c.pending) > 0 {
			cb = c.pending[0]
			c.pending = c.pending[1:]
		}
		c.mu.Unlock()

		if cb != nil {
			cb(reply, nil)
			continue
		}

		if ph, ok := c.handler.(PushHandler); ok {
			ph.OnPush(c, reply)
		} else {
			c.logger.Debug("dropping unsolicited reply", "type", reply.Type.String())
		}
	}
}

// fail finishes the connection after a read error, failing queued
// callbacks and reporting the disconnect. A close that was requested
// deliberately is reported with a nil error.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	deliberate := c.state == StateDisconnecting
	c.state = StateTerminated
	pending := c.pending
	c.pending = nil
	nc := c.nc
	c.mu.Unlock()

	if nc != nil {
		nc.Close()
	}

	for _, cb := range pending {
		cb(nil, ErrClosed)
	}

	if deliberate {
		c.handler.OnDisconnected(c, nil)
		return
	}
	c.handler.OnDisconnected(c, err)
}
