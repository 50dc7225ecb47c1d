package joint

import "github.com/textmode-dev/joint/pkg/protocol"

// Participant is one roster entry. Entries are never removed: a
// disconnected participant stays in place with Closed set, so ids keep
// matching roster positions.
type Participant struct {
	ID     int
	Nick   *string
	Group  *string
	Status protocol.UserStatus
	Closed bool

	conn Conn
}

// IsWeb reports whether the participant is a read-only web viewer.
func (p *Participant) IsWeb() bool { return p.Nick == nil }

// User returns the wire form of p.
func (p *Participant) User() protocol.User {
	return protocol.User{ID: p.ID, Nick: p.Nick, Group: p.Group, Status: p.Status}
}

type roster struct {
	entries []*Participant
}

// add appends a participant whose id is its roster index.
func (r *roster) add(conn Conn, nick, group *string) *Participant {
	p := &Participant{
		ID:     len(r.entries),
		Nick:   nick,
		Group:  group,
		Status: protocol.StatusActive,
		conn:   conn,
	}
	if p.IsWeb() {
		p.Status = protocol.StatusWeb
	}
	r.entries = append(r.entries, p)
	return p
}

func (r *roster) get(id int) (*Participant, bool) {
	if id < 0 || id >= len(r.entries) {
		return nil, false
	}
	return r.entries[id], true
}

// users returns the wire form of every open participant, web viewers
// included.
func (r *roster) users() []protocol.User {
	users := make([]protocol.User, 0, len(r.entries))
	for _, p := range r.entries {
		if !p.Closed {
			users = append(users, p.User())
		}
	}
	return users
}

// open returns the open participants bound to conn. A connection that sent
// CONNECTED more than once owns several entries.
func (r *roster) open(conn Conn) []*Participant {
	var out []*Participant
	for _, p := range r.entries {
		if !p.Closed && p.conn == conn {
			out = append(out, p)
		}
	}
	return out
}

func (r *roster) openCount() int {
	n := 0
	for _, p := range r.entries {
		if !p.Closed {
			n++
		}
	}
	return n
}

// snapshot returns copies of every entry.
func (r *roster) snapshot() []Participant {
	out := make([]Participant, len(r.entries))
	for i, p := range r.entries {
		out[i] = *p
		out[i].conn = nil
	}
	return out
}
