package enums

import "fmt"

// BookingIntentStatus maps to the booking_intent_status enum in Postgres.
type BookingIntentStatus string

const (
	BookingIntentStatusCreated          BookingIntentStatus = "created"
	BookingIntentStatusAwaitingPayment  BookingIntentStatus = "awaiting_payment"
	BookingIntentStatusProcessing       BookingIntentStatus = "processing"
	BookingIntentStatusConfirmed        BookingIntentStatus = "confirmed"
	BookingIntentStatusFailed           BookingIntentStatus = "failed"
	BookingIntentStatusExpired          BookingIntentStatus = "expired"
	BookingIntentStatusRefundedCapacity BookingIntentStatus = "refunded_capacity_conflict"
	// BookingIntentStatusCanceled is reserved for interactive cancellation.
	BookingIntentStatusCanceled BookingIntentStatus = "canceled"
)

var validBookingIntentStatuses = []BookingIntentStatus{
	BookingIntentStatusCreated,
	BookingIntentStatusAwaitingPayment,
	BookingIntentStatusProcessing,
	BookingIntentStatusConfirmed,
	BookingIntentStatusFailed,
	BookingIntentStatusExpired,
	BookingIntentStatusRefundedCapacity,
	BookingIntentStatusCanceled,
}

// IsValid reports whether the value matches the canonical enum.
func (s BookingIntentStatus) IsValid() bool {
	for _, candidate := range validBookingIntentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the intent can no longer transition.
func (s BookingIntentStatus) IsTerminal() bool {
	switch s {
	case BookingIntentStatusConfirmed,
		BookingIntentStatusFailed,
		BookingIntentStatusExpired,
		BookingIntentStatusRefundedCapacity,
		BookingIntentStatusCanceled:
		return true
	}
	return false
}

// ParseBookingIntentStatus converts raw input into BookingIntentStatus.
func ParseBookingIntentStatus(value string) (BookingIntentStatus, error) {
	for _, candidate := range validBookingIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking intent status %q", value)
}
