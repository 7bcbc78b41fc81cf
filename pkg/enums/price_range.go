package enums

import "fmt"

// PriceRange buckets a store or find into rough price tiers.
type PriceRange string

const (
	PriceRangeBudget   PriceRange = "$"
	PriceRangeModerate PriceRange = "$$"
	PriceRangePremium  PriceRange = "$$$"
)

var validPriceRanges = []PriceRange{
	PriceRangeBudget,
	PriceRangeModerate,
	PriceRangePremium,
}

// String returns the literal string for the price range.
func (p PriceRange) String() string {
	return string(p)
}

// IsValid reports whether the price range is known.
func (p PriceRange) IsValid() bool {
	for _, candidate := range validPriceRanges {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceRange converts raw input into a PriceRange.
func ParsePriceRange(value string) (PriceRange, error) {
	for _, candidate := range validPriceRanges {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price range %q", value)
}
