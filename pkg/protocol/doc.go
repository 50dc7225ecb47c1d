// Package protocol implements the JSON wire protocol spoken between joint
// clients and the server.
//
// Every websocket text frame carries exactly one envelope:
//
//	{"type": <action>, "data": {...}}
//
// The action is a small integer drawn from a closed set (see Action). The
// payload shape depends on the action. Payloads the server interprets
// (CONNECTED, DRAW, CHAT, STATUS, SAUCE) are decoded into typed structs and
// validated before dispatch; all other actions are relayed verbatim.
//
// # Actions
//
//   - Connected (0): join request from a client, join reply from the server
//   - Refused (1): join rejected because the session secret did not match
//   - Join (2), Leave (3): roster presence
//   - Cursor (4), Selection (5), ResizeSelection (6), Operation (7),
//     HideCursor (8): editor presence, relayed to collaborators only
//   - Draw (9): single cell replacement
//   - Chat (10), Status (11): chat and participant status
//   - Sauce (12): document metadata replacement
//
// # Validation
//
// Decode rejects envelopes that are not JSON objects, carry an action outside
// the closed set, or whose typed payload does not parse. Such envelopes are
// reported with an error wrapping ErrMalformed and never reach a session.
package protocol
