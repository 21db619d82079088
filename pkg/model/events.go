package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the canonical envelope of every published event.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Service       string          `json:"service"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in a fresh event stamped now.
func NewEvent(topic, eventType, service string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         topic,
		EventType:     eventType,
		Version:       "1.0.0",
		Service:       service,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}

// GateVerdictEvent audits one gate decision. CallFingerprint is the SHA-256
// of the canonicalized tool call, so identical calls share a fingerprint.
type GateVerdictEvent struct {
	Tool            string    `json:"tool"`
	Decision        string    `json:"decision"`
	Code            string    `json:"code,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	CallFingerprint string    `json:"call_fingerprint"`
	ValidatedAt     time.Time `json:"validated_at"`
}
