package backend

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/mkarls/redisgw/internal/resp"
)

// mockBackend starts a TCP server that hands each accepted connection to
// handler. Commands can be decoded server-side with resp.NewReader since
// they are plain arrays of bulk strings.
func mockBackend(t *testing.T, handler func(net.Conn)) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handler(conn)
			}()
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return ln
}

// echoFirstArg replies to every command with a bulk string holding the
// command name.
func echoFirstArg(conn net.Conn) {
	r := resp.NewReader(conn)
	for {
		cmd, err := r.ReadReply()
		if err != nil {
			return
		}
		name := ""
		if len(cmd.Elems) > 0 {
			name = cmd.Elems[0].Str
		}
		fmt.Fprintf(conn, "$%d\r\n%s\r\n", len(name), name)
	}
}

type eventHandler struct {
	connected    chan error
	disconnected chan error
	pushes       chan *resp.Reply
}

func newEventHandler() *eventHandler {
	return &eventHandler{
		connected:    make(chan error, 4),
		disconnected: make(chan error, 4),
		pushes:       make(chan *resp.Reply, 4),
	}
}

func (h *eventHandler) OnConnected(c *Conn, err error)    { h.connected <- err }
func (h *eventHandler) OnDisconnected(c *Conn, err error) { h.disconnected <- err }
func (h *eventHandler) OnPush(c *Conn, reply *resp.Reply) { h.pushes <- reply }

func waitErr(t *testing.T, ch chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
		return nil
	}
}

func TestDialSuccess(t *testing.T) {
	ln := mockBackend(t, echoFirstArg)

	h := newEventHandler()
	c := Dial(Options{Addr: ln.Addr().String()}, h)

	if err := waitErr(t, h.connected, "OnConnected"); err != nil {
		t.Fatalf("OnConnected err = %v", err)
	}
	if !c.Ready() {
		t.Error("Ready = false after successful connect")
	}

	c.Close()
	if err := waitErr(t, h.disconnected, "OnDisconnected"); err != nil {
		t.Errorf("deliberate close reported err = %v", err)
	}
	if c.State() != StateTerminated {
		t.Errorf("State = %v, want terminated", c.State())
	}
}

func TestDialFailure(t *testing.T) {
	// Grab a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	h := newEventHandler()
	c := Dial(Options{Addr: addr, DialTimeout: time.Second}, h)

	if err := waitErr(t, h.connected, "OnConnected"); err == nil {
		t.Fatal("OnConnected err = nil, want dial error")
	}
	if c.State() != StateTerminated {
		t.Errorf("State = %v, want terminated", c.State())
	}
	if err := c.Command(nil, "PING"); err != ErrNotConnected {
		t.Errorf("Command on dead conn = %v, want ErrNotConnected", err)
	}
}

func TestDo(t *testing.T) {
	ln := mockBackend(t, echoFirstArg)

	h := newEventHandler()
	c := Dial(Options{Addr: ln.Addr().String()}, h)
	waitErr(t, h.connected, "OnConnected")
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := c.Do(ctx, "PING")
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if reply.Type != resp.TypeBulk || reply.Str != "PING" {
		t.Errorf("reply = %v %q", reply.Type, reply.Str)
	}
}

func TestPipelinedRepliesAreFIFO(t *testing.T) {
	ln := mockBackend(t, echoFirstArg)

	h := newEventHandler()
	c := Dial(Options{Addr: ln.Addr().String()}, h)
	waitErr(t, h.connected, "OnConnected")
	defer c.Close()

	got := make(chan string, 2)
	cb := func(reply *resp.Reply, err error) {
		if err != nil {
			got <- "err:" + err.Error()
			return
		}
		got <- reply.Str
	}

	if err := c.Command(cb, "FIRST"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if err := c.Command(cb, "SECOND"); err != nil {
		t.Fatalf("Command: %v", err)
	}

	for _, want := range []string{"FIRST", "SECOND"} {
		select {
		case s := <-got:
			if s != want {
				t.Errorf("reply = %q, want %q", s, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for reply")
		}
	}
}

func TestServerDropFailsPending(t *testing.T) {
	release := make(chan struct{})
	ln := mockBackend(t, func(conn net.Conn) {
		// Swallow the command, then drop the connection without replying.
		r := resp.NewReader(conn)
		r.ReadReply()
		<-release
	})

	h := newEventHandler()
	c := Dial(Options{Addr: ln.Addr().String()}, h)
	waitErr(t, h.connected, "OnConnected")

	cbErr := make(chan error, 1)
	if err := c.Command(func(_ *resp.Reply, err error) { cbErr <- err }, "GET", "k"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	close(release)

	if err := waitErr(t, h.disconnected, "OnDisconnected"); err == nil {
		t.Error("transport failure reported nil err")
	}

	select {
	case err := <-cbErr:
		if err != ErrClosed {
			t.Errorf("pending callback err = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending callback never failed")
	}
}

func TestUnsolicitedReplyIsPush(t *testing.T) {
	ln := mockBackend(t, func(conn net.Conn) {
		// Send a pub/sub style message with no command pending.
		buf := []byte("*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n")
		conn.Write(buf)
		// Keep the connection open until the test finishes.
		r := resp.NewReader(conn)
		r.ReadReply()
	})

	h := newEventHandler()
	c := Dial(Options{Addr: ln.Addr().String()}, h)
	waitErr(t, h.connected, "OnConnected")
	defer c.Close()

	select {
	case reply := <-h.pushes:
		if reply.Type != resp.TypeArray || len(reply.Elems) != 3 {
			t.Fatalf("push = %+v", reply)
		}
		if reply.Elems[0].Str != "message" || reply.Elems[2].Str != "hello" {
			t.Errorf("push elems = %q %q", reply.Elems[0].Str, reply.Elems[2].Str)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push never delivered")
	}
}
