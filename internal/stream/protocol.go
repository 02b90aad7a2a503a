// Package stream pushes morph-buffer state and animation events to the
// rendering frontend over websocket.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// MessageType identifies frame types on the wire.
type MessageType string

const (
	MessageHello      MessageType = "hello"
	MessageMorphState MessageType = "morph_state"
	MessageViseme     MessageType = "viseme"
	MessageExpression MessageType = "expression"
)

// Envelope wraps every wire message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload greets a new client with its session identity.
type HelloPayload struct {
	SessionID string `json:"session_id"`
	ServerMs  int64  `json:"server_ms"`
}

// MorphStatePayload is a full snapshot of the morph-weight buffer.
type MorphStatePayload struct {
	Weights     map[string]float64 `json:"weights"`
	TimestampMs int64              `json:"timestamp_ms"`
}

// VisemePayload is one classified viseme event.
type VisemePayload struct {
	Name      string  `json:"name"`
	Intensity float64 `json:"intensity"`
}

// ExpressionPayload is one applied expression event.
type ExpressionPayload struct {
	Type      string  `json:"type"`
	Intensity float64 `json:"intensity"`
}

// Encode marshals a payload into an enveloped wire frame.
func Encode(t MessageType, payload any) ([]byte, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	data, err := sonic.Marshal(Envelope{Type: t, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", t, err)
	}
	return data, nil
}

// Decode unmarshals an envelope, returning its type and raw payload.
func Decode(data []byte) (MessageType, json.RawMessage, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Type, env.Payload, nil
}

// DecodePayload unmarshals a raw payload into out.
func DecodePayload(raw json.RawMessage, out any) error {
	return sonic.Unmarshal(raw, out)
}
