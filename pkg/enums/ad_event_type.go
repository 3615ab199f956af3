package enums

import "fmt"

// AdEventType maps to the ad_event_type enum in Postgres.
type AdEventType string

const (
	AdEventTypeServe      AdEventType = "serve"
	AdEventTypeNoFill     AdEventType = "no_fill"
	AdEventTypeImpression AdEventType = "impression"
	AdEventTypeClick      AdEventType = "click"
)

var validAdEventTypes = []AdEventType{
	AdEventTypeServe,
	AdEventTypeNoFill,
	AdEventTypeImpression,
	AdEventTypeClick,
}

// IsValid reports whether the value matches the canonical enum.
func (t AdEventType) IsValid() bool {
	for _, candidate := range validAdEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAdEventType converts raw input into AdEventType.
func ParseAdEventType(value string) (AdEventType, error) {
	for _, candidate := range validAdEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ad event type %q", value)
}
