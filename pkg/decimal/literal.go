package decimal

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Literal is a numeric value as it arrives from a venue payload or a caller:
// an integer, a binary floating value or a numeric string.
// The set of implementations is closed: Int, Float and Text.
type Literal interface {
	literal()
}

// Int is an integer literal.
type Int int64

// Float is a binary floating-point literal.
type Float float64

// Text is a numeric string literal, plain or in scientific notation.
type Text string

func (Int) literal()   {}
func (Float) literal() {}
func (Text) literal()  {}

// FromLiteral normalizes a literal into a Decimal.
func FromLiteral(l Literal) (Decimal, error) {
	switch v := l.(type) {
	case Int:
		return NewFromInt(int64(v)), nil
	case Float:
		return NewFromFloat(float64(v))
	case Text:
		return Parse(string(v))
	case nil:
		return Decimal{}, errors.Wrap(ErrFormat, "nil literal")
	default:
		panic("decimal: unknown literal type")
	}
}

// NewFromFloat converts f using its shortest round-trip representation,
// so 0.1 becomes exactly 0.1 rather than its binary expansion.
func NewFromFloat(f float64) (Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Decimal{}, errors.Wrapf(ErrFormat, "%v is not a finite number", f)
	}
	return Parse(strconv.FormatFloat(f, 'g', -1, 64))
}
