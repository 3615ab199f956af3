package enums

import "fmt"

// SlotPurchaseStatus maps to the slot_purchase_status enum in Postgres.
type SlotPurchaseStatus string

const (
	SlotPurchaseStatusPending   SlotPurchaseStatus = "pending"
	SlotPurchaseStatusConfirmed SlotPurchaseStatus = "confirmed"
	SlotPurchaseStatusCompleted SlotPurchaseStatus = "completed"
	SlotPurchaseStatusCanceled  SlotPurchaseStatus = "canceled"
)

var validSlotPurchaseStatuses = []SlotPurchaseStatus{
	SlotPurchaseStatusPending,
	SlotPurchaseStatusConfirmed,
	SlotPurchaseStatusCompleted,
	SlotPurchaseStatusCanceled,
}

// IsValid reports whether the value matches the canonical enum.
func (s SlotPurchaseStatus) IsValid() bool {
	for _, candidate := range validSlotPurchaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsTowardCapacity reports whether the purchase consumes slot percentage.
func (s SlotPurchaseStatus) CountsTowardCapacity() bool {
	return s != SlotPurchaseStatusCanceled
}

// ParseSlotPurchaseStatus converts raw input into SlotPurchaseStatus.
func ParseSlotPurchaseStatus(value string) (SlotPurchaseStatus, error) {
	for _, candidate := range validSlotPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid slot purchase status %q", value)
}
