package enums

import "fmt"

// CreditEntryType maps to the credit_entry_type enum in Postgres.
type CreditEntryType string

const (
	CreditEntryTypePromoGrant          CreditEntryType = "promo_grant"
	CreditEntryTypeCashConversionDebit CreditEntryType = "cash_conversion_debit"
	CreditEntryTypeCashConversionBonus CreditEntryType = "cash_conversion_bonus"
	CreditEntryTypeBookingSpend        CreditEntryType = "booking_spend"
	CreditEntryTypeAdjustmentDebit     CreditEntryType = "adjustment_debit"
)

var validCreditEntryTypes = []CreditEntryType{
	CreditEntryTypePromoGrant,
	CreditEntryTypeCashConversionDebit,
	CreditEntryTypeCashConversionBonus,
	CreditEntryTypeBookingSpend,
	CreditEntryTypeAdjustmentDebit,
}

// IsValid reports whether the value matches the canonical enum.
func (t CreditEntryType) IsValid() bool {
	for _, candidate := range validCreditEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCreditEntryType converts raw input into CreditEntryType.
func ParseCreditEntryType(value string) (CreditEntryType, error) {
	for _, candidate := range validCreditEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit entry type %q", value)
}
