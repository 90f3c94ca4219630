package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "fasela/pkg/domain"
)

// EventType names a ledger lifecycle event on the feed.
type EventType string

const (
	EventDonationCreated   EventType = "donation.created"
	EventDonationConfirmed EventType = "donation.confirmed"
	EventDonationCancelled EventType = "donation.cancelled"
	EventHandoverRecorded  EventType = "handover.recorded"
	EventHandoverAmended   EventType = "handover.amended"
)

const (
	AggregateDonation = "donation"
	AggregateHandover = "handover"
)

// Event is one outbox row. It is written in the same transaction as the ledger
// mutation it describes and published to Kafka afterwards.
type Event struct {
	ID             uuid.UUID         `json:"id"`
	AggregateType  string            `json:"aggregate_type"`
	AggregateID    string            `json:"aggregate_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	EventType      EventType         `json:"event_type"`
	Payload        json.RawMessage   `json:"payload"`
	CreatedAt      time.Time         `json:"created_at"`
	PublishedAt    *time.Time        `json:"published_at,omitempty"`
}

// NewEvent marshals payload into a new unpublished event.
func NewEvent(aggregateType, aggregateID string, orgID id.OrganizationID, eventType EventType, payload any, now time.Time) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:             uuid.New(),
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		OrganizationID: orgID,
		EventType:      eventType,
		Payload:        body,
		CreatedAt:      now,
	}, nil
}

// Envelope is the message value published to the ledger events topic.
type Envelope struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	OrganizationID string          `json:"organization_id"`
	OccurredAt     string          `json:"occurred_at"`
	Data           json.RawMessage `json:"data"`
}

func (e *Event) Envelope() Envelope {
	return Envelope{
		ID:             e.ID.String(),
		Type:           e.EventType,
		AggregateType:  e.AggregateType,
		AggregateID:    e.AggregateID,
		OrganizationID: e.OrganizationID.String(),
		OccurredAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Data:           e.Payload,
	}
}
