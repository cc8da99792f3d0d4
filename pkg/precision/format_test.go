package precision

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

func TestFormat_DecimalPlaces(t *testing.T) {
	tests := []struct {
		name string
		in   string
		d    Directive
		want string
	}{
		{"truncate", "123.456", Places(2, Truncate), "123.45"},
		{"round", "123.456", Places(2, Round), "123.46"},
		{"zero padded", "0", Places(2, Round).WithPadding(PadWithZero), "0.00"},
		{"carry into new digit", "999.99", Places(0, Round), "1000"},
		{"carry stops at tie", "1.45", Places(0, Round), "1"},
		{"half rounds up", "1.45", Places(1, Round), "1.5"},
		{"half away from zero", "-1.005", Places(2, Round), "-1.01"},
		{"negative truncate", "-123.456", Places(2, Truncate), "-123.45"},
		{"zero drops sign", "-0.0049", Places(2, Round), "0"},
		{"zero drops sign truncated", "-0.009", Places(2, Truncate), "0"},
		{"half to one", "0.5", Places(0, Round), "1"},
		{"negative half", "-0.5", Places(0, Round), "-1"},
		{"shortest output", "1.20000", Places(4, Round), "1.2"},
		{"pad fraction", "1.2", Places(4, Round).WithPadding(PadWithZero), "1.2000"},
		{"integer input", "42", Places(3, Truncate), "42"},
		{"more places than digits", "0.001", Places(8, Round), "0.001"},
		{"coarse round", "1234.5", Places(-2, Round), "1200"},
		{"coarse round half", "1250", Places(-2, Round), "1300"},
		{"coarse truncate", "-1250", Places(-2, Truncate), "-1200"},
		{"coarse small value", "49", Places(-2, Round), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatString(tt.in, tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_SignificantDigits(t *testing.T) {
	tests := []struct {
		name string
		in   string
		d    Directive
		want string
	}{
		{"round", "123.456", Significant(4, Round), "123.5"},
		{"truncate", "123.456", Significant(4, Truncate), "123.4"},
		{"leading zeros skipped", "0.000123456", Significant(3, Round), "0.000123"},
		{"integer digits", "123456", Significant(2, Truncate), "120000"},
		{"carry", "9.99", Significant(2, Round), "10"},
		{"padding", "1.2", Significant(4, Round).WithPadding(PadWithZero), "1.200"},
		{"negative", "-0.0098765", Significant(2, Round), "-0.0099"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatString(tt.in, tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_TickSize(t *testing.T) {
	tests := []struct {
		name string
		in   decimal.Literal
		tick string
		mode RoundingMode
		pad  PaddingMode
		want string
	}{
		{"float noise", decimal.Float(0.1 + 0.2), "0.01", Round, NoPadding, "0.3"},
		{"on grid", decimal.Text("1.5"), "0.5", Truncate, NoPadding, "1.5"},
		{"tie goes up", decimal.Text("1.25"), "0.5", Round, NoPadding, "1.5"},
		{"negative tie goes to larger magnitude", decimal.Text("-1.25"), "0.5", Round, NoPadding, "-1.5"},
		{"below half", decimal.Text("1.2"), "0.5", Round, NoPadding, "1"},
		{"truncate", decimal.Text("1.49"), "0.5", Truncate, NoPadding, "1"},
		{"negative truncate", decimal.Text("-1.49"), "0.5", Truncate, NoPadding, "-1"},
		{"quarter tick", decimal.Text("1.1"), "0.25", Round, NoPadding, "1"},
		{"integer tick", decimal.Int(12), "5", Round, NoPadding, "10"},
		{"integer tick half", decimal.Text("12.5"), "5", Round, NoPadding, "15"},
		{"padded to tick places", decimal.Int(1), "0.01", Round, PadWithZero, "1.00"},
		{"fine tick", decimal.Text("0.123456789"), "0.00001", Truncate, NoPadding, "0.12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Tick(decimal.MustParse(tt.tick), tt.mode).WithPadding(tt.pad)
			got, err := FormatLiteral(tt.in, d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_Errors(t *testing.T) {
	t.Run("zero tick", func(t *testing.T) {
		_, err := FormatString("1", Tick(decimal.Zero, Round))
		assert.ErrorIs(t, err, ErrInvalidTickSize)
		assert.ErrorIs(t, err, ErrPrecisionArgument)
	})

	t.Run("negative tick", func(t *testing.T) {
		_, err := FormatString("1", Tick(decimal.MustParse("-0.01"), Round))
		assert.ErrorIs(t, err, ErrInvalidTickSize)
	})

	t.Run("fractional digit count", func(t *testing.T) {
		d := Directive{Digits: decimal.MustParse("2.5"), Rounding: Round}
		_, err := FormatString("1", d)
		assert.ErrorIs(t, err, ErrInvalidDigits)
	})

	t.Run("huge digit count", func(t *testing.T) {
		_, err := FormatString("1", Places(maxDigits+1, Round))
		assert.ErrorIs(t, err, ErrInvalidDigits)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := FormatString("1", Directive{Rounding: RoundingMode(7)})
		assert.ErrorIs(t, err, ErrPrecisionArgument)
	})

	t.Run("bad literal", func(t *testing.T) {
		_, err := FormatString("1..2", Places(2, Round))
		assert.ErrorIs(t, err, decimal.ErrFormat)
	})
}

func TestFormat_Literals(t *testing.T) {
	got, err := FormatLiteral(decimal.Int(5), Places(2, Round).WithPadding(PadWithZero))
	require.NoError(t, err)
	assert.Equal(t, "5.00", got)

	got, err = FormatLiteral(decimal.Float(0.1+0.2), Significant(3, Round))
	require.NoError(t, err)
	assert.Equal(t, "0.3", got)
}

func TestFormat_Idempotent(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	directives := []Directive{
		Places(2, Round),
		Places(4, Truncate),
		Places(0, Round),
		Significant(3, Round),
		Significant(5, Truncate),
		Tick(decimal.MustParse("0.05"), Round),
		Tick(decimal.MustParse("0.001"), Truncate),
	}

	for i := 0; i < 300; i++ {
		x := decimal.New(rnd.Int63n(2_000_000_000)-1_000_000_000, int32(rnd.Intn(9)))
		for _, d := range directives {
			once, err := Format(x, d)
			require.NoError(t, err)
			twice, err := FormatString(once, d)
			require.NoError(t, err)
			assert.Equal(t, once, twice, "format(%s) with %+v", x, d)
		}
	}
}

func TestFormat_TruncateNeverGrows(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 300; i++ {
		x := decimal.New(rnd.Int63n(1_000_000_000), int32(rnd.Intn(9)))
		got, err := Format(x, Places(2, Truncate))
		require.NoError(t, err)
		assert.True(t, decimal.MustParse(got).Le(x), "%s truncated to %s", x, got)
	}
}

func TestPrecisionFromString(t *testing.T) {
	tests := map[string]int{
		"0.0100": 2,
		"1e-8":   8,
		"100":    0,
		"1e2":    -2,
		"1":      0,
		"0.5":    1,
		"abc":    0,
	}
	for in, want := range tests {
		assert.Equal(t, want, PrecisionFromString(in), in)
	}
}

func TestParsePrecision(t *testing.T) {
	assert.Equal(t, "0.001", ParsePrecision(3))
	assert.Equal(t, "1", ParsePrecision(0))
	assert.Equal(t, "100", ParsePrecision(-2))
}

func TestTickToPlaces(t *testing.T) {
	n, err := TickToPlaces(decimal.MustParse("0.001"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = TickToPlaces(decimal.MustParse("10"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = TickToPlaces(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTickSize)
}

func TestParseModes(t *testing.T) {
	r, err := ParseRoundingMode("Round")
	require.NoError(t, err)
	assert.Equal(t, Round, r)

	c, err := ParseCountMode("tick_size")
	require.NoError(t, err)
	assert.Equal(t, TickSize, c)

	p, err := ParsePaddingMode("")
	require.NoError(t, err)
	assert.Equal(t, NoPadding, p)

	_, err = ParseCountMode("sigfigs")
	assert.Error(t, err)

	assert.Equal(t, "significant", SignificantDigits.String())
	assert.False(t, PaddingMode(5).IsValid())
}
