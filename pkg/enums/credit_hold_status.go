package enums

import "fmt"

// CreditHoldStatus maps to the credit_hold_status enum in Postgres.
type CreditHoldStatus string

const (
	CreditHoldStatusHeld     CreditHoldStatus = "held"
	CreditHoldStatusCaptured CreditHoldStatus = "captured"
	CreditHoldStatusReleased CreditHoldStatus = "released"
)

var validCreditHoldStatuses = []CreditHoldStatus{
	CreditHoldStatusHeld,
	CreditHoldStatusCaptured,
	CreditHoldStatusReleased,
}

// IsValid reports whether the value matches the canonical enum.
func (s CreditHoldStatus) IsValid() bool {
	for _, candidate := range validCreditHoldStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCreditHoldStatus converts raw input into CreditHoldStatus.
func ParseCreditHoldStatus(value string) (CreditHoldStatus, error) {
	for _, candidate := range validCreditHoldStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit hold status %q", value)
}
