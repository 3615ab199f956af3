package types

import (
	"time"
)

// AdEventRow is the BigQuery fact row for one serving event.
type AdEventRow struct {
	EventID     string    `bigquery:"event_id"`
	EventType   string    `bigquery:"event_type"`
	AppID       string    `bigquery:"app_id"`
	CampaignID  *string   `bigquery:"campaign_id"`
	PurchaseID  *string   `bigquery:"purchase_id"`
	PlacementID string    `bigquery:"placement_id"`
	DeviceHash  *string   `bigquery:"device_hash"`
	WeekStart   time.Time `bigquery:"week_start"`
	OccurredAt  time.Time `bigquery:"occurred_at"`
	IngestedAt  time.Time `bigquery:"ingested_at"`
}

// RowFromEnvelope maps the wire envelope onto the BigQuery schema.
func RowFromEnvelope(env *Envelope, ingestedAt time.Time) AdEventRow {
	row := AdEventRow{
		EventID:     env.EventID,
		EventType:   env.EventType,
		AppID:       env.AppID,
		PlacementID: env.PlacementID,
		WeekStart:   env.WeekStart,
		OccurredAt:  env.OccurredAt,
		IngestedAt:  ingestedAt.UTC(),
	}
	if env.CampaignID != "" {
		campaignID := env.CampaignID
		row.CampaignID = &campaignID
	}
	if env.PurchaseID != "" {
		purchaseID := env.PurchaseID
		row.PurchaseID = &purchaseID
	}
	if env.DeviceHash != "" {
		deviceHash := env.DeviceHash
		row.DeviceHash = &deviceHash
	}
	return row
}
