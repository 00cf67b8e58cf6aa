package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkarls/redisgw/internal/backend"
	"github.com/mkarls/redisgw/internal/resp"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// The gateway fronts trusted clients; origin policy belongs to the
	// deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades the request and bridges it to a dedicated backend
// connection. A dedicated connection is required because SUBSCRIBE turns
// the link into a push stream that cannot be shared with pooled request
// traffic.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s := &wsSession{
		ws:        ws,
		send:      make(chan []byte, 64),
		connected: make(chan error, 1),
		done:      make(chan struct{}),
	}
	s.conn = h.cfg.Dial(s)

	select {
	case err := <-s.connected:
		if err != nil {
			s.writeNow(errorFrame(err))
			ws.Close()
			return
		}
	case <-r.Context().Done():
		s.close()
		return
	}

	go s.writeLoop()
	s.readLoop()
}

// wsSession owns one client socket and one backend connection.
type wsSession struct {
	ws   *websocket.Conn
	conn *backend.Conn

	send      chan []byte
	connected chan error
	done      chan struct{}
	closeOnce sync.Once
}

// OnConnected implements backend.Handler.
func (s *wsSession) OnConnected(c *backend.Conn, err error) {
	s.connected <- err
}

// OnDisconnected implements backend.Handler.
func (s *wsSession) OnDisconnected(c *backend.Conn, err error) {
	s.close()
}

// OnPush implements backend.PushHandler: pub/sub messages stream to the
// client keyed by their kind ("message", "subscribe", ...).
func (s *wsSession) OnPush(c *backend.Conn, reply *resp.Reply) {
	key := "push"
	if reply.Type == resp.TypeArray && len(reply.Elems) > 0 && reply.Elems[0].Type == resp.TypeBulk {
		key = reply.Elems[0].Str
	}
	body, err := json.Marshal(map[string]any{key: replyValue(reply)})
	if err != nil {
		return
	}
	s.enqueue(body)
}

// readLoop decodes JSON-array commands from the client and issues them on
// the session's backend connection.
func (s *wsSession) readLoop() {
	defer s.close()

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return
		}

		var args []string
		if err := json.Unmarshal(data, &args); err != nil || len(args) == 0 {
			s.enqueue(errorFrame(ErrEmptyCommand))
			continue
		}

		cmd := args[0]
		err = s.conn.Command(func(reply *resp.Reply, err error) {
			if err != nil {
				s.enqueue(errorFrame(err))
				return
			}
			body, err := renderReply(cmd, reply)
			if err != nil {
				return
			}
			s.enqueue(body)
		}, args...)
		if err != nil {
			s.enqueue(errorFrame(err))
		}
	}
}

func (s *wsSession) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case body := <-s.send:
			if err := s.writeNow(body); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *wsSession) writeNow(body []byte) error {
	s.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.ws.WriteMessage(websocket.TextMessage, body)
}

func (s *wsSession) enqueue(body []byte) {
	select {
	case s.send <- body:
	case <-s.done:
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.ws.Close()
	})
}

func errorFrame(err error) []byte {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return body
}
