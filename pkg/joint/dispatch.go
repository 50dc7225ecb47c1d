package joint

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/textmode-dev/joint/pkg/protocol"
	"github.com/textmode-dev/joint/pkg/textmode"
)

// handlerFunc applies one envelope. It runs on the session loop.
type handlerFunc func(s *Session, conn Conn, e *protocol.Envelope)

// handlers maps the actions the server interprets. Every other action is
// relayed unchanged to the other identified participants.
var handlers = map[protocol.Action]handlerFunc{
	protocol.Connected: (*Session).onConnected,
	protocol.Draw:      (*Session).onDraw,
	protocol.Chat:      (*Session).onChat,
	protocol.Status:    (*Session).onStatus,
	protocol.Sauce:     (*Session).onSauce,
}

func (s *Session) handle(conn Conn, e *protocol.Envelope) {
	_, span := s.tracer.Start(context.Background(), "joint.dispatch", trace.WithAttributes(
		attribute.String("joint.path", s.path),
		attribute.String("joint.action", e.Type.String()),
	))
	defer span.End()

	s.metrics.event(e.Type)
	if h, ok := handlers[e.Type]; ok {
		h(s, conn, e)
		return
	}
	s.broadcast(conn, excludeSender, e)
}

func (s *Session) onConnected(conn Conn, e *protocol.Envelope) {
	req, ok := payload[protocol.ConnectRequest](s, conn, e)
	if !ok {
		return
	}
	if !req.IsWeb() && s.secret != "" && req.Pass != s.secret {
		s.metrics.refuse()
		s.logger.Info("participant refused", "nick", *req.Nick)
		s.unicast(conn, protocol.Refused, nil)
		return
	}

	// The roster is captured before the joiner is appended.
	users := s.roster.users()
	p := s.roster.add(conn, req.Nick, req.Group)
	doc := textmode.Compress(s.doc)

	if p.IsWeb() {
		s.unicast(conn, protocol.Connected, protocol.WebConnectReply{ID: p.ID, Doc: doc})
		s.logger.Info("web joined", "id", p.ID)
	} else {
		s.unicast(conn, protocol.Connected, protocol.ConnectReply{
			ID:          p.ID,
			Doc:         doc,
			Users:       users,
			ChatHistory: s.chat.list(),
			Status:      p.Status,
		})
		s.logger.Info("participant joined", "id", p.ID, "nick", *p.Nick)
	}

	join, err := protocol.New(protocol.Join, p.User())
	if err != nil {
		s.logger.Error("encode failed", "type", protocol.Join, "error", err)
		return
	}
	s.broadcast(conn, excludeSender, join)
	s.metrics.setParticipants(s.path, s.roster.openCount())
}

func (s *Session) onDraw(conn Conn, e *protocol.Envelope) {
	p, ok := payload[protocol.DrawPayload](s, conn, e)
	if !ok {
		return
	}
	if err := s.doc.SetBlock(p.X, p.Y, p.Block); err != nil {
		s.metrics.drop(dropOutOfBounds)
		s.logger.Warn("draw dropped", "conn", conn.ID(), "x", p.X, "y", p.Y, "error", err)
		return
	}
	s.broadcast(conn, includeWebExcludeSender, e)
}

func (s *Session) onChat(conn Conn, e *protocol.Envelope) {
	m, ok := payload[protocol.ChatPayload](s, conn, e)
	if !ok {
		return
	}
	p, ok := s.roster.get(m.ID)
	if !ok {
		s.metrics.drop(dropUnknownSender)
		s.logger.Warn("chat dropped", "conn", conn.ID(), "id", m.ID)
		return
	}
	// A nick is never cleared by chat; that would demote the author to a
	// web viewer.
	if m.Nick != nil && !equalPtr(p.Nick, m.Nick) {
		p.Nick = m.Nick
	}
	if !equalPtr(p.Group, m.Group) {
		p.Group = m.Group
	}
	s.chat.add(protocol.ChatMessage{ID: m.ID, Nick: m.Nick, Group: m.Group, Text: m.Text})
	s.broadcast(conn, excludeSender, e)
}

func (s *Session) onStatus(conn Conn, e *protocol.Envelope) {
	m, ok := payload[protocol.StatusPayload](s, conn, e)
	if !ok {
		return
	}
	p, ok := s.roster.get(m.ID)
	if !ok {
		s.metrics.drop(dropUnknownSender)
		s.logger.Warn("status dropped", "conn", conn.ID(), "id", m.ID)
		return
	}
	p.Status = m.Status
	s.broadcast(conn, includeSender, e)
}

func (s *Session) onSauce(conn Conn, e *protocol.Envelope) {
	m, ok := payload[protocol.SaucePayload](s, conn, e)
	if !ok {
		return
	}
	s.doc.SetSauce(textmode.Sauce{
		Title:    m.Title,
		Author:   m.Author,
		Group:    m.Group,
		Comments: m.Comments,
	})
	s.broadcast(conn, includeWebExcludeSender, e)
}

// payload returns the typed payload of e. Envelopes that did not come
// through protocol.Decode carry none and are dropped as malformed.
func payload[T any](s *Session, conn Conn, e *protocol.Envelope) (*T, bool) {
	p, ok := e.Payload.(*T)
	if !ok || p == nil {
		s.metrics.drop(dropMalformed)
		s.logger.Warn("envelope without payload dropped", "conn", conn.ID(), "type", e.Type)
		return nil, false
	}
	return p, true
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
