package joint

import "github.com/textmode-dev/joint/pkg/protocol"

// chatHistory keeps the most recent messages, evicting the oldest first.
type chatHistory struct {
	entries []protocol.ChatMessage
	max     int
}

func newChatHistory(size int) *chatHistory {
	return &chatHistory{entries: make([]protocol.ChatMessage, 0, size), max: size}
}

func (h *chatHistory) add(m protocol.ChatMessage) {
	if len(h.entries) == h.max {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, m)
}

// list returns a copy, oldest first. It is never nil so replies encode [].
func (h *chatHistory) list() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *chatHistory) len() int { return len(h.entries) }
