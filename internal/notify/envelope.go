package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Event types published by the payment engine.
const (
	EventAuthorized = "payment_authorized"
	EventCaptured   = "payment_captured"
	EventRefunded   = "payment_refunded"
)

// ErrBadSignature is returned by Verify when the signature does not match.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Envelope is the signed part of a notification.
type Envelope struct {
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"` // RFC3339Nano UTC
	Data      json.RawMessage `json:"data"`
}

// Message is what goes on the wire. Payload keeps the exact bytes that were
// signed so subscribers can recompute the HMAC without re-encoding.
type Message struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Seal encodes env and wraps it with its signature.
func Seal(secret []byte, env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	msg, err := json.Marshal(Message{Payload: payload, Signature: Sign(secret, payload)})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return msg, nil
}

// Verify authenticates a raw message and returns it with its decoded envelope.
func Verify(secret, raw []byte) (*Message, *Envelope, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, fmt.Errorf("decode message: %w", err)
	}
	want := Sign(secret, msg.Payload)
	if !hmac.Equal([]byte(want), []byte(msg.Signature)) {
		return nil, nil, ErrBadSignature
	}
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &msg, &env, nil
}
