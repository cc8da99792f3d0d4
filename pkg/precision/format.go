package precision

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// noiseDigits is the number of decimal places the tick remainder is rounded to
// before deciding whether a value is already on the tick grid.
const noiseDigits = 8

var bigTen = big.NewInt(10)

// Format renders x according to d.
func Format(x decimal.Decimal, d Directive) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}

	if d.Counting == TickSize {
		return formatTick(x, d), nil
	}

	n, err := d.count()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return formatCoarse(x, n, d.Rounding), nil
	}
	return roundDigits(x.String(), n, d.Rounding, d.Counting, d.Padding), nil
}

// FormatLiteral is Format for an integer, float or string input.
func FormatLiteral(x decimal.Literal, d Directive) (string, error) {
	v, err := decimal.FromLiteral(x)
	if err != nil {
		return "", err
	}
	return Format(v, d)
}

// FormatString is Format for a numeric string.
func FormatString(x string, d Directive) (string, error) {
	return FormatLiteral(decimal.Text(x), d)
}

// formatCoarse rounds to a multiple of 10^-n for negative n.
func formatCoarse(x decimal.Decimal, n int, rounding RoundingMode) string {
	toNearest := decimal.New(1, int32(n))

	if rounding == Truncate {
		rem, _ := x.Mod(toNearest)
		return x.Sub(rem).String()
	}

	scale := x.Exponent() - int32(n)
	if scale < 0 {
		scale = 0
	}
	q, _ := x.DivPrec(toNearest, scale)
	units := roundDigits(q.String(), 0, Round, DecimalPlaces, NoPadding)
	return decimal.MustParse(units).Mul(toNearest).String()
}

// formatTick snaps x onto the tick grid and prints it with the tick's own
// number of decimal places.
func formatTick(x decimal.Decimal, d Directive) string {
	tick := d.Digits
	places := PrecisionFromString(roundDigits(tick.String(), 22, Round, DecimalPlaces, NoPadding))
	if places < 0 {
		places = 0
	}

	mag := x.Abs()
	missing, _ := mag.Mod(tick)
	missing = decimal.MustParse(roundDigits(missing.String(), noiseDigits, Round, DecimalPlaces, NoPadding))

	errPlaces := places
	if errPlaces < noiseDigits {
		errPlaces = noiseDigits
	}
	ratio, _ := missing.DivPrec(tick, int32(errPlaces)+2)
	fpError := roundDigits(ratio.String(), errPlaces, Round, DecimalPlaces, NoPadding)

	if PrecisionFromString(fpError) != 0 {
		switch d.Rounding {
		case Round:
			half, _ := tick.DivPrec(decimal.NewFromInt(2), maxExp(tick.Exponent(), 0)+1)
			if missing.Ge(half) {
				mag = mag.Sub(missing).Add(tick)
			} else {
				mag = mag.Sub(missing)
			}
		case Truncate:
			mag = mag.Sub(missing)
		}
		if x.Sign() < 0 {
			x = mag.Neg()
		} else {
			x = mag
		}
	}

	return roundDigits(x.String(), places, Round, DecimalPlaces, d.Padding)
}

func maxExp(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// roundDigits rounds or truncates the fixed-point string s in place on its
// digit buffer, propagating carries from the least significant digit up.
func roundDigits(s string, n int, rounding RoundingMode, counting CountMode, padding PaddingMode) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	// buf[0] is a spare digit that absorbs a carry out of the leading digit (999 -> 1000).
	buf := make([]byte, 1, len(s)+1)
	buf[0] = '0'
	dot := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			dot = len(buf)
			continue
		}
		buf = append(buf, s[i])
	}
	if dot < 0 {
		dot = len(buf)
	}

	start := dot
	if counting == SignificantDigits {
		start = 1
		for i := 1; i < len(buf); i++ {
			if buf[i] != '0' {
				start = i
				break
			}
		}
	}
	cut := start + n

	var carry byte
	for i := len(buf) - 1; i > 0; i-- {
		c := buf[i] + carry
		if i >= cut {
			// a 5 produced by a carry is not a tie: the original digit was 4
			up := rounding == Round && c >= '5' && !(c == '5' && carry == 1)
			if up {
				c = '9' + 1
			} else {
				c = '0'
			}
		}
		if c > '9' {
			c = '0'
			carry = 1
		} else {
			carry = 0
		}
		buf[i] = c
	}
	if carry == 1 {
		buf[0] = '1'
	}

	first, end := -1, -1
	for i := 0; i < len(buf); i++ {
		if buf[i] != '0' {
			if first < 0 {
				first = i
			}
			end = i + 1
		}
	}
	allZeros := first < 0

	precisionEnd := cut
	if counting == SignificantDigits && !allZeros {
		precisionEnd = first + n
	}

	readStart := first
	if allZeros || first >= dot {
		readStart = dot - 1
	}
	readEnd := end
	if readEnd < dot {
		readEnd = dot
	}

	fracLen := readEnd - dot
	if padding == PadWithZero && precisionEnd-dot > fracLen {
		fracLen = precisionEnd - dot
	}

	var out strings.Builder
	out.Grow(fracLen + readEnd - readStart + 2)
	if neg && !allZeros {
		out.WriteByte('-')
	}
	out.Write(buf[readStart:dot])
	if fracLen > 0 {
		out.WriteByte('.')
		out.Write(buf[dot:readEnd])
		out.WriteString(strings.Repeat("0", fracLen-(readEnd-dot)))
	}
	return out.String()
}

// PrecisionFromString returns the number of significant fractional digits in
// s: "0.0100" is 2, "1e-8" is 8, "1e2" is -2 and "100" is 0.
func PrecisionFromString(s string) int {
	d, err := decimal.Parse(s)
	if err != nil {
		return 0
	}
	exp := int(d.Reduce().Exponent())
	if exp < 0 && !strings.ContainsAny(s, "eE") {
		return 0
	}
	return exp
}

// ParsePrecision returns the tick that corresponds to n decimal places:
// 3 gives "0.001", 0 gives "1" and -2 gives "100".
func ParsePrecision(n int) string {
	return decimal.New(1, int32(n)).String()
}

// TickToPlaces returns the number of decimal places a tick size implies.
func TickToPlaces(tick decimal.Decimal) (int, error) {
	if tick.Sign() <= 0 {
		return 0, errors.Wrapf(ErrInvalidTickSize, "tick size %s", tick)
	}
	n := PrecisionFromString(tick.String())
	if n < 0 {
		n = 0
	}
	return n, nil
}
