package types

import (
	"fmt"
	"regexp"
	"strings"
)

// Address is a US street address split into its display parts.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip,omitempty"`
}

// CombinedLine renders the address as a single comma-separated line.
func (a Address) CombinedLine() string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(a.City); c != "" {
		parts = append(parts, c)
	}
	tail := strings.TrimSpace(a.State)
	if zip := strings.TrimSpace(a.Zip); zip != "" {
		if tail != "" {
			tail = tail + " " + zip
		} else {
			tail = zip
		}
	}
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// IsEmpty reports whether no component of the address is set.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.State) == "" &&
		strings.TrimSpace(a.Zip) == ""
}

var stateZipPattern = regexp.MustCompile(`^([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)$`)

// ParseCombined splits a "street, city, ST zip" line back into parts.
// The authoritativeState, when non-empty, always wins over whatever
// state code appears inside the combined line.
func ParseCombined(line, authoritativeState string) (Address, error) {
	segments := strings.Split(line, ",")
	trimmed := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := strings.TrimSpace(seg); s != "" {
			trimmed = append(trimmed, s)
		}
	}

	if len(trimmed) == 0 {
		return Address{}, fmt.Errorf("address: empty combined line %q", line)
	}

	var addr Address
	switch len(trimmed) {
	case 1:
		addr.Street = trimmed[0]
	case 2:
		addr.Street = trimmed[0]
		addr.City = trimmed[1]
	default:
		addr.Street = strings.Join(trimmed[:len(trimmed)-2], ", ")
		addr.City = trimmed[len(trimmed)-2]
		tail := trimmed[len(trimmed)-1]
		if m := stateZipPattern.FindStringSubmatch(tail); m != nil {
			addr.State = strings.ToUpper(m[1])
			addr.Zip = m[2]
		} else if len(tail) == 2 {
			addr.State = strings.ToUpper(tail)
		} else {
			addr.City = trimmed[len(trimmed)-2] + ", " + tail
		}
	}

	if s := strings.TrimSpace(authoritativeState); s != "" {
		addr.State = strings.ToUpper(s)
	}

	return addr, nil
}
