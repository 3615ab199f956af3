package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/admeshlabs/admesh-backend/pkg/db/models"
)

// Envelope is the canonical ad-event Pub/Sub payload.
type Envelope struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	AppID       string    `json:"app_id"`
	CampaignID  string    `json:"campaign_id,omitempty"`
	PurchaseID  string    `json:"purchase_id,omitempty"`
	PlacementID string    `json:"placement_id"`
	DeviceHash  string    `json:"device_hash,omitempty"`
	WeekStart   time.Time `json:"week_start"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EnvelopeFromEvent converts a stored serving event into its wire form.
func EnvelopeFromEvent(event *models.AdEvent) Envelope {
	env := Envelope{
		EventID:     event.ID.String(),
		EventType:   string(event.Type),
		AppID:       event.AppID.String(),
		PlacementID: event.PlacementID,
		WeekStart:   event.WeekStart.UTC(),
		OccurredAt:  event.OccurredAt.UTC(),
	}
	if event.CampaignID != nil {
		env.CampaignID = event.CampaignID.String()
	}
	if event.PurchaseID != nil {
		env.PurchaseID = event.PurchaseID.String()
	}
	if event.DeviceHash != nil {
		env.DeviceHash = *event.DeviceHash
	}
	return env
}

// Decode parses a raw message body into an Envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode ad event envelope: %w", err)
	}
	if env.EventID == "" {
		return nil, fmt.Errorf("event_id missing")
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("event_type missing")
	}
	return &env, nil
}
