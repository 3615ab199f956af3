package enums

import "fmt"

// PayoutBatchStatus maps to the payout_batch_status enum in Postgres.
type PayoutBatchStatus string

const (
	PayoutBatchStatusPending   PayoutBatchStatus = "pending"
	PayoutBatchStatusCompleted PayoutBatchStatus = "completed"
	PayoutBatchStatusFailed    PayoutBatchStatus = "failed"
)

var validPayoutBatchStatuses = []PayoutBatchStatus{
	PayoutBatchStatusPending,
	PayoutBatchStatusCompleted,
	PayoutBatchStatusFailed,
}

// IsValid reports whether the value matches the canonical enum.
func (s PayoutBatchStatus) IsValid() bool {
	for _, candidate := range validPayoutBatchStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// PayoutItemStatus maps to the payout_item_status enum in Postgres.
type PayoutItemStatus string

const (
	PayoutItemStatusPaid    PayoutItemStatus = "paid"
	PayoutItemStatusSkipped PayoutItemStatus = "skipped"
	PayoutItemStatusFailed  PayoutItemStatus = "failed"
)

var validPayoutItemStatuses = []PayoutItemStatus{
	PayoutItemStatusPaid,
	PayoutItemStatusSkipped,
	PayoutItemStatusFailed,
}

// IsValid reports whether the value matches the canonical enum.
func (s PayoutItemStatus) IsValid() bool {
	for _, candidate := range validPayoutItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutItemStatus converts raw input into PayoutItemStatus.
func ParsePayoutItemStatus(value string) (PayoutItemStatus, error) {
	for _, candidate := range validPayoutItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout item status %q", value)
}
