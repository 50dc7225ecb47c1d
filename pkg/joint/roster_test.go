package joint

import (
	"testing"

	"github.com/textmode-dev/joint/pkg/protocol"
)

func strPtr(s string) *string { return &s }

func TestRosterIDsAreIndices(t *testing.T) {
	var r roster
	a, b := newFakeConn("a"), newFakeConn("b")

	p0 := r.add(a, strPtr("alice"), nil)
	p1 := r.add(b, nil, nil)
	p1.Closed = true
	p2 := r.add(a, strPtr("alice2"), strPtr("acid"))

	if p0.ID != 0 || p1.ID != 1 || p2.ID != 2 {
		t.Fatalf("ids = %d %d %d, want 0 1 2", p0.ID, p1.ID, p2.ID)
	}
	if p1.Status != protocol.StatusWeb || p0.Status != protocol.StatusActive {
		t.Fatalf("statuses = %s %s", p0.Status, p1.Status)
	}
	if got, ok := r.get(1); !ok || got != p1 {
		t.Fatalf("get(1) = %v, %v", got, ok)
	}
	if _, ok := r.get(3); ok {
		t.Fatal("get(3) found an entry")
	}
	if _, ok := r.get(-1); ok {
		t.Fatal("get(-1) found an entry")
	}
	if users := r.users(); len(users) != 2 || users[0].ID != 0 || users[1].ID != 2 {
		t.Fatalf("users = %+v, want ids 0 and 2", users)
	}
	if open := r.open(a); len(open) != 2 {
		t.Fatalf("open(a) = %d entries, want 2", len(open))
	}
	if n := r.openCount(); n != 2 {
		t.Fatalf("openCount = %d, want 2", n)
	}
}

func TestChatHistoryEvictsOldest(t *testing.T) {
	h := newChatHistory(3)
	if got := h.list(); got == nil || len(got) != 0 {
		t.Fatalf("empty list = %#v, want non-nil empty slice", got)
	}
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		h.add(protocol.ChatMessage{Text: text})
	}
	got := h.list()
	if len(got) != 3 || got[0].Text != "c" || got[2].Text != "e" {
		t.Fatalf("history = %+v, want [c d e]", got)
	}

	got[0].Text = "mutated"
	if h.list()[0].Text != "c" {
		t.Fatal("list returned shared storage")
	}
}

func TestFanoutReaches(t *testing.T) {
	sender, other := newFakeConn("sender"), newFakeConn("other")
	nick := strPtr("n")
	tests := []struct {
		name string
		f    fanout
		p    Participant
		want bool
	}{
		{"exclude-sender skips sender", excludeSender, Participant{Nick: nick, conn: sender}, false},
		{"exclude-sender reaches other", excludeSender, Participant{Nick: nick, conn: other}, true},
		{"exclude-sender skips web", excludeSender, Participant{conn: other}, false},
		{"include-sender reaches sender", includeSender, Participant{Nick: nick, conn: sender}, true},
		{"include-sender skips web", includeSender, Participant{conn: other}, false},
		{"include-web reaches web", includeWebExcludeSender, Participant{conn: other}, true},
		{"include-web skips sender", includeWebExcludeSender, Participant{Nick: nick, conn: sender}, false},
		{"closed never reached", includeSender, Participant{Nick: nick, conn: other, Closed: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.reaches(&tt.p, sender); got != tt.want {
				t.Fatalf("%s.reaches = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}
