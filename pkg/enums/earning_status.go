package enums

import "fmt"

// EarningStatus maps to the earning_status enum in Postgres.
type EarningStatus string

const (
	EarningStatusAccrued  EarningStatus = "accrued"
	EarningStatusEligible EarningStatus = "eligible"
	EarningStatusPaid     EarningStatus = "paid"
)

var validEarningStatuses = []EarningStatus{
	EarningStatusAccrued,
	EarningStatusEligible,
	EarningStatusPaid,
}

// IsValid reports whether the value matches the canonical enum.
func (s EarningStatus) IsValid() bool {
	for _, candidate := range validEarningStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEarningStatus converts raw input into EarningStatus.
func ParseEarningStatus(value string) (EarningStatus, error) {
	for _, candidate := range validEarningStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earning status %q", value)
}
