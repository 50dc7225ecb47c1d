package protocol

import "fmt"

// Action identifies the kind of an envelope.
type Action int

const (
	Connected       Action = 0
	Refused         Action = 1
	Join            Action = 2
	Leave           Action = 3
	Cursor          Action = 4
	Selection       Action = 5
	ResizeSelection Action = 6
	Operation       Action = 7
	HideCursor      Action = 8
	Draw            Action = 9
	Chat            Action = 10
	Status          Action = 11
	Sauce           Action = 12
)

// maxAction is the highest defined action.
const maxAction = Sauce

// Valid reports whether a is part of the protocol.
func (a Action) Valid() bool {
	return a >= Connected && a <= maxAction
}

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case Connected:
		return "CONNECTED"
	case Refused:
		return "REFUSED"
	case Join:
		return "JOIN"
	case Leave:
		return "LEAVE"
	case Cursor:
		return "CURSOR"
	case Selection:
		return "SELECTION"
	case ResizeSelection:
		return "RESIZE_SELECTION"
	case Operation:
		return "OPERATION"
	case HideCursor:
		return "HIDE_CURSOR"
	case Draw:
		return "DRAW"
	case Chat:
		return "CHAT"
	case Status:
		return "STATUS"
	case Sauce:
		return "SAUCE"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// UserStatus is the presence state of a participant.
type UserStatus int

const (
	StatusActive UserStatus = 0
	StatusIdle   UserStatus = 1
	StatusAway   UserStatus = 2
	StatusWeb    UserStatus = 3
)

// Valid reports whether s is a defined status.
func (s UserStatus) Valid() bool {
	return s >= StatusActive && s <= StatusWeb
}

// String returns the string representation of the status.
func (s UserStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusIdle:
		return "IDLE"
	case StatusAway:
		return "AWAY"
	case StatusWeb:
		return "WEB"
	default:
		return fmt.Sprintf("UserStatus(%d)", int(s))
	}
}
