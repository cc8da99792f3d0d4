package precision

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// maxDigits bounds digit counts so a bad venue payload cannot force huge buffers.
const maxDigits = 4096

var (
	// ErrPrecisionArgument is the parent of every precision argument error.
	ErrPrecisionArgument = errors.New("invalid precision argument")
	// ErrInvalidTickSize is returned for a tick size that is zero or negative.
	ErrInvalidTickSize = errors.WithMessage(ErrPrecisionArgument, "tick size must be positive")
	// ErrInvalidDigits is returned for a digit count that is not a bounded integer.
	ErrInvalidDigits = errors.WithMessage(ErrPrecisionArgument, "digit count must be an integer")
	// ErrCollapsedToZero is returned when a non-zero value formats to "0".
	ErrCollapsedToZero = errors.WithMessage(ErrPrecisionArgument, "value is below the minimum resolution")
)

// Directive describes how a single field must be formatted.
type Directive struct {
	// Digits is a digit count for DecimalPlaces and SignificantDigits,
	// and the tick quantum itself for TickSize.
	Digits   decimal.Decimal
	Rounding RoundingMode
	Counting CountMode
	Padding  PaddingMode
}

// Places formats to n digits after the decimal point.
func Places(n int, rounding RoundingMode) Directive {
	return Directive{Digits: decimal.NewFromInt(int64(n)), Rounding: rounding, Counting: DecimalPlaces}
}

// Significant formats to n significant digits.
func Significant(n int, rounding RoundingMode) Directive {
	return Directive{Digits: decimal.NewFromInt(int64(n)), Rounding: rounding, Counting: SignificantDigits}
}

// Tick formats to a multiple of size.
func Tick(size decimal.Decimal, rounding RoundingMode) Directive {
	return Directive{Digits: size, Rounding: rounding, Counting: TickSize}
}

// WithPadding returns a copy of d using padding p.
func (d Directive) WithPadding(p PaddingMode) Directive {
	d.Padding = p
	return d
}

func (d Directive) validate() error {
	if !d.Rounding.IsValid() {
		return errors.WithMessagef(ErrPrecisionArgument, "unknown rounding mode %d", d.Rounding)
	}
	if !d.Counting.IsValid() {
		return errors.WithMessagef(ErrPrecisionArgument, "unknown count mode %d", d.Counting)
	}
	if !d.Padding.IsValid() {
		return errors.WithMessagef(ErrPrecisionArgument, "unknown padding mode %d", d.Padding)
	}
	if d.Counting == TickSize && d.Digits.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidTickSize, "tick size %s", d.Digits)
	}
	return nil
}

// count returns Digits as an integer digit count.
func (d Directive) count() (int, error) {
	r := d.Digits.Reduce()
	if r.Exponent() > 0 {
		return 0, errors.Wrapf(ErrInvalidDigits, "got %s", d.Digits)
	}
	n := r.Mantissa()
	for i := int32(0); i < -r.Exponent(); i++ {
		n.Mul(n, bigTen)
		if !n.IsInt64() {
			break
		}
	}
	if !n.IsInt64() || n.Int64() > maxDigits || n.Int64() < -maxDigits {
		return 0, errors.Wrapf(ErrInvalidDigits, "got %s", d.Digits)
	}
	return int(n.Int64()), nil
}
