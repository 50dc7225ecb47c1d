package joint

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/textmode-dev/joint/pkg/protocol"
)

// wsConn adapts a websocket connection to Conn.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	// mu serializes writes; gorilla allows one concurrent writer.
	mu     sync.Mutex
	closed atomic.Bool
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

// ID implements Conn.
func (c *wsConn) ID() string { return c.id }

// Send implements Conn.
func (c *wsConn) Send(msg []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Close implements Conn. It sends a normal close frame and closes the
// socket; later calls are no-ops.
func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

// serve attaches c to s and reads until the connection ends.
func (s *Session) serve(c *wsConn) {
	if err := s.Connect(c); err != nil {
		c.Close()
		return
	}
	c.readLoop(s)
	c.Close()
	if err := s.Disconnect(c); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("disconnect failed", "conn", c.id, "error", err)
	}
}

// readLoop decodes incoming envelopes and queues them on the session.
// Malformed envelopes are logged, counted and skipped.
func (c *wsConn) readLoop(s *Session) {
	c.ws.SetReadLimit(s.config.ReadLimit)

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "conn", c.id, "error", err)
			}
			return
		}

		e, err := protocol.Decode(msg)
		if err != nil {
			s.metrics.drop(dropMalformed)
			s.logger.Warn("malformed envelope", "conn", c.id, "error", err)
			continue
		}
		if err := s.Deliver(c, e); err != nil {
			return
		}
	}
}
