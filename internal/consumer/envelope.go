// Package consumer ingests bus envelopes from Kafka and turns them into
// activity appends.
package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// envelopeTimeLayout is the only accepted timestamp format on the bus. Anything
// else is a hard parse failure for that message.
const envelopeTimeLayout = "2006-01-02T15:04:05Z"

// Envelope is the outer bus message wrapping a domain event.
type Envelope struct {
	Time   string `json:"time"`
	Detail Detail `json:"detail"`
}

// Detail is the CloudEvents-style payload carried inside the envelope.
type Detail struct {
	SpecVersion string    `json:"specversion"`
	Source      string    `json:"source"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Data        EventData `json:"data"`
}

// EventData holds the event-type-specific fields the router consumes. Fields
// not set by a given event type are left empty.
type EventData struct {
	ProductID   string `json:"productId"`
	UserID      string `json:"userId"`
	OrderNumber string `json:"orderNumber"`
}

// Event is the decoded, routable form of an envelope.
type Event struct {
	Type       string
	ID         string
	Data       EventData
	OccurredAt int64 // envelope timestamp as epoch milliseconds
}

// decodeEnvelope parses a raw message body into an Event. A malformed body,
// missing detail.type, or unparsable timestamp fails the whole message.
func decodeEnvelope(value []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Detail.Type == "" {
		return Event{}, errors.New("envelope missing detail.type")
	}
	ts, err := time.Parse(envelopeTimeLayout, env.Time)
	if err != nil {
		return Event{}, fmt.Errorf("parse envelope time %q: %w", env.Time, err)
	}

	return Event{
		Type:       env.Detail.Type,
		ID:         env.Detail.ID,
		Data:       env.Detail.Data,
		OccurredAt: ts.UnixMilli(),
	}, nil
}
