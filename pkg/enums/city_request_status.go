package enums

import "fmt"

// CityRequestStatus describes the state of a requested city expansion.
type CityRequestStatus string

const (
	CityRequestStatusPending   CityRequestStatus = "pending"
	CityRequestStatusCompleted CityRequestStatus = "completed"
	CityRequestStatusRejected  CityRequestStatus = "rejected"
)

var validCityRequestStatuses = []CityRequestStatus{
	CityRequestStatusPending,
	CityRequestStatusCompleted,
	CityRequestStatusRejected,
}

// String returns the literal string for the status.
func (c CityRequestStatus) String() string {
	return string(c)
}

// IsValid reports whether the status is known.
func (c CityRequestStatus) IsValid() bool {
	for _, candidate := range validCityRequestStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCityRequestStatus converts raw input into a CityRequestStatus.
func ParseCityRequestStatus(value string) (CityRequestStatus, error) {
	for _, candidate := range validCityRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid city request status %q", value)
}
