package joint

import "github.com/textmode-dev/joint/pkg/protocol"

// fanout selects the recipients of a broadcast.
type fanout int

const (
	// excludeSender reaches identified participants other than the sender.
	excludeSender fanout = iota

	// includeSender reaches every identified participant.
	includeSender

	// includeWebExcludeSender reaches every participant, web viewers
	// included, other than the sender.
	includeWebExcludeSender
)

func (f fanout) String() string {
	switch f {
	case excludeSender:
		return "exclude-sender"
	case includeSender:
		return "include-sender"
	case includeWebExcludeSender:
		return "include-web-exclude-sender"
	default:
		return "unknown"
	}
}

func (f fanout) reaches(p *Participant, sender Conn) bool {
	if p.Closed {
		return false
	}
	switch f {
	case excludeSender:
		return !p.IsWeb() && p.conn != sender
	case includeSender:
		return !p.IsWeb()
	case includeWebExcludeSender:
		return p.conn != sender
	}
	return false
}

// broadcast encodes e once and sends it to every participant f selects.
// Delivery is fire-and-forget: failures are logged and counted, never
// retried. Must run on the session loop.
func (s *Session) broadcast(sender Conn, f fanout, e *protocol.Envelope) {
	msg, err := protocol.Encode(e)
	if err != nil {
		s.logger.Error("encode failed", "type", e.Type, "error", err)
		return
	}
	for _, p := range s.roster.entries {
		if f.reaches(p, sender) {
			s.send(p.conn, msg)
		}
	}
}

// unicast sends one envelope to conn.
func (s *Session) unicast(conn Conn, a protocol.Action, v any) {
	e, err := protocol.New(a, v)
	if err != nil {
		s.logger.Error("encode failed", "type", a, "error", err)
		return
	}
	msg, err := protocol.Encode(e)
	if err != nil {
		s.logger.Error("encode failed", "type", a, "error", err)
		return
	}
	s.send(conn, msg)
}

func (s *Session) send(conn Conn, msg []byte) {
	if err := conn.Send(msg); err != nil {
		s.metrics.sendError()
		s.logger.Debug("send failed", "conn", conn.ID(), "error", err)
	}
}
