// Package precision formats prices, amounts and fees into the exact strings a
// venue accepts for a declared precision.
package precision

import (
	"strings"

	"github.com/pkg/errors"
)

// RoundingMode controls what happens to digits beyond the precision.
type RoundingMode int

const (
	// Truncate drops excess digits toward zero.
	Truncate RoundingMode = iota
	// Round rounds half away from zero.
	Round
)

// String returns the string representation.
func (r RoundingMode) String() string {
	switch r {
	case Truncate:
		return "truncate"
	case Round:
		return "round"
	default:
		return "unknown"
	}
}

// IsValid checks if the RoundingMode value is valid.
func (r RoundingMode) IsValid() bool {
	return r == Truncate || r == Round
}

// ParseRoundingMode parses "round" or "truncate".
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "round":
		return Round, nil
	case "truncate":
		return Truncate, nil
	default:
		return 0, errors.Errorf("unknown rounding mode %q", s)
	}
}

// CountMode selects how the precision digits are counted.
type CountMode int

const (
	// DecimalPlaces counts digits after the decimal point.
	DecimalPlaces CountMode = iota
	// SignificantDigits counts digits from the first non-zero digit.
	SignificantDigits
	// TickSize treats the precision as the smallest accepted increment.
	TickSize
)

// String returns the string representation.
func (c CountMode) String() string {
	switch c {
	case DecimalPlaces:
		return "decimals"
	case SignificantDigits:
		return "significant"
	case TickSize:
		return "tick"
	default:
		return "unknown"
	}
}

// IsValid checks if the CountMode value is valid.
func (c CountMode) IsValid() bool {
	return c == DecimalPlaces || c == SignificantDigits || c == TickSize
}

// ParseCountMode parses "decimals", "significant" or "tick".
func ParseCountMode(s string) (CountMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "decimals", "decimal_places":
		return DecimalPlaces, nil
	case "significant", "significant_digits":
		return SignificantDigits, nil
	case "tick", "tick_size":
		return TickSize, nil
	default:
		return 0, errors.Errorf("unknown count mode %q", s)
	}
}

// PaddingMode controls trailing zeros in the fractional part.
type PaddingMode int

const (
	// NoPadding emits the shortest string for the rounded value.
	NoPadding PaddingMode = iota
	// PadWithZero pads the fractional part up to the requested precision.
	PadWithZero
)

// String returns the string representation.
func (p PaddingMode) String() string {
	switch p {
	case NoPadding:
		return "none"
	case PadWithZero:
		return "zero"
	default:
		return "unknown"
	}
}

// IsValid checks if the PaddingMode value is valid.
func (p PaddingMode) IsValid() bool {
	return p == NoPadding || p == PadWithZero
}

// ParsePaddingMode parses "none" or "zero".
func ParsePaddingMode(s string) (PaddingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no_padding", "":
		return NoPadding, nil
	case "zero", "pad_with_zero":
		return PadWithZero, nil
	default:
		return 0, errors.Errorf("unknown padding mode %q", s)
	}
}
