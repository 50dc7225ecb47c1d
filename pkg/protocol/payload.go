package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/textmode-dev/joint/pkg/textmode"
)

// ConnectRequest is sent by a client to join a session. A request without a
// nick joins as a read-only web viewer.
type ConnectRequest struct {
	Nick  *string `json:"nick,omitempty"`
	Group *string `json:"group,omitempty"`
	Pass  string  `json:"pass,omitempty"`
}

func (p *ConnectRequest) validate() error { return nil }

// IsWeb reports whether the request joins as a web viewer.
func (p *ConnectRequest) IsWeb() bool { return p.Nick == nil }

// User describes a participant in CONNECTED replies and JOIN broadcasts.
type User struct {
	ID     int        `json:"id"`
	Nick   *string    `json:"nick,omitempty"`
	Group  *string    `json:"group,omitempty"`
	Status UserStatus `json:"status"`
}

// ChatMessage is one chat history entry.
type ChatMessage struct {
	ID    int     `json:"id"`
	Nick  *string `json:"nick,omitempty"`
	Group *string `json:"group,omitempty"`
	Text  string  `json:"text"`
}

// WebConnectReply answers a web viewer's CONNECTED request.
type WebConnectReply struct {
	ID  int                          `json:"id"`
	Doc *textmode.CompressedDocument `json:"doc"`
}

// ConnectReply answers an identified participant's CONNECTED request.
type ConnectReply struct {
	ID          int                          `json:"id"`
	Doc         *textmode.CompressedDocument `json:"doc"`
	Users       []User                       `json:"users"`
	ChatHistory []ChatMessage                `json:"chat_history"`
	Status      UserStatus                   `json:"status"`
}

// LeavePayload announces that a participant disconnected.
type LeavePayload struct {
	ID int `json:"id"`
}

// DrawPayload replaces the cell at (X, Y).
type DrawPayload struct {
	X     int            `json:"x"`
	Y     int            `json:"y"`
	Block textmode.Block `json:"block"`
}

func (p *DrawPayload) UnmarshalJSON(b []byte) error {
	var aux struct {
		X     *int            `json:"x"`
		Y     *int            `json:"y"`
		Block json.RawMessage `json:"block"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.X == nil || aux.Y == nil {
		return errors.New("draw requires x and y")
	}
	if len(aux.Block) == 0 {
		return errors.New("draw requires block")
	}
	if err := json.Unmarshal(aux.Block, &p.Block); err != nil {
		return fmt.Errorf("block: %w", err)
	}
	p.X, p.Y = *aux.X, *aux.Y
	return nil
}

func (p *DrawPayload) validate() error {
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("negative coordinate (%d, %d)", p.X, p.Y)
	}
	return p.Block.Validate()
}

// ChatPayload is a chat line. ID names the author's roster entry.
type ChatPayload struct {
	ID    int     `json:"id"`
	Nick  *string `json:"nick,omitempty"`
	Group *string `json:"group,omitempty"`
	Text  string  `json:"text"`
}

func (p *ChatPayload) UnmarshalJSON(b []byte) error {
	type plain ChatPayload
	aux := struct {
		ID *int `json:"id"`
		*plain
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return errors.New("chat requires id")
	}
	p.ID = *aux.ID
	return nil
}

func (p *ChatPayload) validate() error {
	if p.ID < 0 {
		return fmt.Errorf("negative id %d", p.ID)
	}
	return nil
}

// StatusPayload changes a participant's status.
type StatusPayload struct {
	ID     int        `json:"id"`
	Status UserStatus `json:"status"`
}

func (p *StatusPayload) UnmarshalJSON(b []byte) error {
	var aux struct {
		ID     *int        `json:"id"`
		Status *UserStatus `json:"status"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.ID == nil || aux.Status == nil {
		return errors.New("status requires id and status")
	}
	p.ID, p.Status = *aux.ID, *aux.Status
	return nil
}

func (p *StatusPayload) validate() error {
	if p.ID < 0 {
		return fmt.Errorf("negative id %d", p.ID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("unknown status %d", int(p.Status))
	}
	return nil
}

// SaucePayload replaces the document metadata.
type SaucePayload struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Group    string `json:"group"`
	Comments string `json:"comments"`
}

func (p *SaucePayload) validate() error { return nil }
