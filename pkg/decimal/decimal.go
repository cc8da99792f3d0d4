package decimal

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultDivPrecision is the number of fractional digits kept by [Decimal.Div].
const DefaultDivPrecision = 18

// MaxExponent bounds the exponent Parse accepts, so printing a parsed value
// stays small and products of parsed values never leave the int32 range.
const MaxExponent = 1 << 16

var (
	// ErrFormat is returned when a numeric literal cannot be parsed.
	ErrFormat = errors.New("invalid numeric literal")
	// ErrExponentRange is returned when a result cannot be represented.
	ErrExponentRange = errors.New("decimal exponent out of range")
)

var (
	bigZero = big.NewInt(0)
	bigTen  = big.NewInt(10)
)

// Decimal is an immutable decimal value mantissa × 10^-exponent.
// The zero value is 0.
type Decimal struct {
	// mant is never modified after construction; nil means zero.
	mant *big.Int
	exp  int32
}

// Zero is the decimal 0.
var Zero = Decimal{}

// New returns mantissa × 10^-exponent.
func New(mantissa int64, exponent int32) Decimal {
	return Decimal{mant: big.NewInt(mantissa), exp: exponent}
}

// NewFromInt returns the integer i as a Decimal.
func NewFromInt(i int64) Decimal {
	return New(i, 0)
}

// NewFromBigInt returns mantissa × 10^-exponent. The mantissa is copied.
func NewFromBigInt(mantissa *big.Int, exponent int32) Decimal {
	if mantissa == nil {
		return Decimal{exp: exponent}
	}
	return Decimal{mant: new(big.Int).Set(mantissa), exp: exponent}
}

// Parse reads a numeric literal such as "12", "-0.015" or "1.23e-4".
func Parse(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, errors.Wrap(ErrFormat, "empty string")
	}

	body := s
	neg := false
	if body[0] == '-' {
		neg = true
		body = body[1:]
	}

	modifier := 0
	if i := strings.IndexAny(body, "eE"); i >= 0 {
		m, err := strconv.ParseInt(body[i+1:], 10, 32)
		if err != nil {
			return Decimal{}, errors.Wrapf(ErrFormat, "%q: bad exponent", s)
		}
		modifier = int(m)
		body = body[:i]
	}

	var (
		digits   = make([]byte, 0, len(body))
		decimals = 0
		seenDot  = false
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '.' && !seenDot:
			seenDot = true
		case c >= '0' && c <= '9':
			digits = append(digits, c)
			if seenDot {
				decimals++
			}
		default:
			return Decimal{}, errors.Wrapf(ErrFormat, "%q: illegal character %q", s, c)
		}
	}
	if len(digits) == 0 {
		return Decimal{}, errors.Wrapf(ErrFormat, "%q: no digits", s)
	}

	exp := int64(decimals) - int64(modifier)
	if exp > MaxExponent || exp < -MaxExponent {
		return Decimal{}, errors.Wrapf(ErrFormat, "%q: exponent beyond ±%d", s, MaxExponent)
	}

	mant, ok := new(big.Int).SetString(string(digits), 10)
	if !ok {
		return Decimal{}, errors.Wrapf(ErrFormat, "%q: bad digits", s)
	}
	if neg {
		mant.Neg(mant)
	}
	return Decimal{mant: mant, exp: int32(exp)}, nil
}

// Mantissa returns a copy of the integer mantissa.
func (d Decimal) Mantissa() *big.Int {
	return new(big.Int).Set(d.int())
}

// Exponent returns the number of decimal places the mantissa is shifted by.
func (d Decimal) Exponent() int32 {
	return d.exp
}

func (d Decimal) int() *big.Int {
	if d.mant == nil {
		return bigZero
	}
	return d.mant
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(n), nil)
}

// scaleUp returns x × 10^n.
func scaleUp(x *big.Int, n int64) *big.Int {
	if n == 0 {
		return x
	}
	return new(big.Int).Mul(x, pow10(n))
}

// align brings both mantissas to the larger of the two exponents.
func align(d, e Decimal) (*big.Int, *big.Int, int32) {
	switch {
	case d.exp == e.exp:
		return d.int(), e.int(), d.exp
	case d.exp > e.exp:
		return d.int(), scaleUp(e.int(), int64(d.exp)-int64(e.exp)), d.exp
	default:
		return scaleUp(d.int(), int64(e.exp)-int64(d.exp)), e.int(), e.exp
	}
}

// Add returns d + e.
func (d Decimal) Add(e Decimal) Decimal {
	a, b, exp := align(d, e)
	return Decimal{mant: new(big.Int).Add(a, b), exp: exp}
}

// Sub returns d - e.
func (d Decimal) Sub(e Decimal) Decimal {
	return d.Add(e.Neg())
}

// Mul returns d × e. It panics with ErrExponentRange when the exponent of
// the product overflows; values from Parse never do. See MulChecked.
func (d Decimal) Mul(e Decimal) Decimal {
	p, err := d.MulChecked(e)
	if err != nil {
		panic(err)
	}
	return p
}

// MulChecked returns d × e, or ErrExponentRange when the exponent of the
// product does not fit an int32.
func (d Decimal) MulChecked(e Decimal) (Decimal, error) {
	exp := int64(d.exp) + int64(e.exp)
	if exp > math.MaxInt32 || exp < math.MinInt32 {
		return Decimal{}, errors.Wrapf(ErrExponentRange, "%d + %d", d.exp, e.exp)
	}
	return Decimal{mant: new(big.Int).Mul(d.int(), e.int()), exp: int32(exp)}, nil
}

// Div returns d / e truncated to DefaultDivPrecision fractional digits.
// ok is false when e is zero.
func (d Decimal) Div(e Decimal) (q Decimal, ok bool) {
	return d.DivPrec(e, DefaultDivPrecision)
}

// DivPrec returns d / e truncated toward zero to precision fractional digits.
// ok is false when e is zero.
func (d Decimal) DivPrec(e Decimal, precision int32) (q Decimal, ok bool) {
	if e.int().Sign() == 0 {
		return Decimal{}, false
	}

	distance := int64(precision) - int64(d.exp) + int64(e.exp)
	var numerator *big.Int
	if distance >= 0 {
		numerator = scaleUp(d.int(), distance)
	} else {
		numerator = new(big.Int).Quo(d.int(), pow10(-distance))
	}

	return Decimal{mant: new(big.Int).Quo(numerator, e.int()), exp: precision}, true
}

// Mod returns the remainder of d / e. The result has the sign of d.
// ok is false when e is zero.
func (d Decimal) Mod(e Decimal) (r Decimal, ok bool) {
	if e.int().Sign() == 0 {
		return Decimal{}, false
	}
	a, b, exp := align(d, e)
	return Decimal{mant: new(big.Int).Rem(a, b), exp: exp}, true
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{mant: new(big.Int).Neg(d.int()), exp: d.exp}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{mant: new(big.Int).Abs(d.int()), exp: d.exp}
}

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	return d.int().Sign()
}

// IsZero reports whether d is 0.
func (d Decimal) IsZero() bool {
	return d.Sign() == 0
}

// Cmp compares d and e and returns -1, 0 or +1.
func (d Decimal) Cmp(e Decimal) int {
	return d.Sub(e).Sign()
}

// Gt reports whether d > e.
func (d Decimal) Gt(e Decimal) bool { return d.Cmp(e) > 0 }

// Ge reports whether d >= e.
func (d Decimal) Ge(e Decimal) bool { return d.Cmp(e) >= 0 }

// Lt reports whether d < e.
func (d Decimal) Lt(e Decimal) bool { return d.Cmp(e) < 0 }

// Le reports whether d <= e.
func (d Decimal) Le(e Decimal) bool { return d.Cmp(e) <= 0 }

// Equal reports whether the canonical forms of d and e are identical.
func (d Decimal) Equal(e Decimal) bool {
	a, b := d.Reduce(), e.Reduce()
	return a.exp == b.exp && a.int().Cmp(b.int()) == 0
}

// Min returns the smaller of d and e.
func (d Decimal) Min(e Decimal) Decimal {
	if d.Le(e) {
		return d
	}
	return e
}

// Max returns the larger of d and e.
func (d Decimal) Max(e Decimal) Decimal {
	if d.Ge(e) {
		return d
	}
	return e
}

// Reduce returns the canonical form of d: no trailing zero digits in the
// mantissa, and exponent 0 when the value is zero.
func (d Decimal) Reduce() Decimal {
	m := d.int()
	if m.Sign() == 0 {
		return Decimal{}
	}

	s := m.String()
	stripped := strings.TrimRight(s, "0")
	n := len(s) - len(stripped)
	if n == 0 {
		return d
	}

	exp := int64(d.exp) - int64(n)
	if exp < math.MinInt32 {
		return d
	}
	mant, _ := new(big.Int).SetString(stripped, 10)
	return Decimal{mant: mant, exp: int32(exp)}
}

// String renders the canonical value in fixed-point notation.
func (d Decimal) String() string {
	r := d.Reduce()
	m := r.int()

	sign := ""
	if m.Sign() < 0 {
		sign = "-"
	}
	digits := new(big.Int).Abs(m).String()

	exp := int(r.exp)
	if exp < 0 {
		return sign + digits + strings.Repeat("0", -exp)
	}
	if exp == 0 {
		return sign + digits
	}
	if len(digits) < exp {
		digits = strings.Repeat("0", exp-len(digits)) + digits
	}

	point := len(digits) - exp
	if point == 0 {
		return sign + "0." + digits
	}
	return sign + digits[:point] + "." + digits[point:]
}

// MarshalText implements encoding.TextMarshaler.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
