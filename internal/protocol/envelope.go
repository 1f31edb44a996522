// Package protocol defines the websocket envelope shared by the board client
// and the relay.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope types. join_room and leave_room manage membership, chat carries a
// serialized shape that the relay persists, ai is an ephemeral control signal
// that is broadcast but never persisted.
const (
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"
	TypeChat      = "chat"
	TypeAI        = "ai"
)

// Envelope is the wire frame for every message in both directions. Message is
// raw JSON: a serialized shape for chat, an opaque string for ai.
type Envelope struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Decode parses an inbound frame. Callers treat an error as "drop this
// message and keep the connection": one undecodable frame from a client must
// not take the connection down.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode: %w", err)
	}
	switch e.Type {
	case TypeJoinRoom, TypeLeaveRoom, TypeChat, TypeAI:
	default:
		return Envelope{}, fmt.Errorf("protocol: decode: unknown type %q", e.Type)
	}
	if e.RoomID == "" {
		return Envelope{}, fmt.Errorf("protocol: decode: missing roomId")
	}
	return e, nil
}

// Encode serializes an envelope for the wire.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Chat builds a chat envelope around an already-serialized shape payload.
func Chat(roomID string, payload []byte) Envelope {
	return Envelope{Type: TypeChat, RoomID: roomID, Message: payload}
}

// Join builds a membership join request.
func Join(roomID string) Envelope {
	return Envelope{Type: TypeJoinRoom, RoomID: roomID}
}

// Leave builds a membership leave request.
func Leave(roomID string) Envelope {
	return Envelope{Type: TypeLeaveRoom, RoomID: roomID}
}

// AI builds an ephemeral control broadcast carrying an opaque string.
func AI(roomID, message string) (Envelope, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeAI, RoomID: roomID, Message: raw}, nil
}
