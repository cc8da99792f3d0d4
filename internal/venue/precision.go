package venue

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/precision"
)

// directive builds the formatting directive for a declared precision under the
// exchange's count and padding modes.
func (e *Exchange) directive(digits decimal.Decimal, rounding precision.RoundingMode) precision.Directive {
	return precision.Directive{
		Digits:   digits,
		Rounding: rounding,
		Counting: e.precisionMode,
		Padding:  e.paddingMode,
	}
}

// format renders x and rejects results that lose a non-zero value entirely.
func (e *Exchange) format(x decimal.Literal, d precision.Directive, field, symbol string, guardZero bool) (string, error) {
	v, err := decimal.FromLiteral(x)
	if err != nil {
		return "", errors.Wrapf(err, "%s %s", symbol, field)
	}

	s, err := precision.Format(v, d)
	if err != nil {
		return "", errors.Wrapf(err, "%s %s", symbol, field)
	}

	if guardZero && !v.IsZero() && decimal.MustParse(s).IsZero() {
		return "", errors.Wrapf(precision.ErrCollapsedToZero,
			"%s %s %s must be at least %s", symbol, field, v, minimum(d))
	}
	return s, nil
}

// minimum is the smallest non-zero value a directive can print.
func minimum(d precision.Directive) string {
	if d.Counting == precision.TickSize {
		return d.Digits.String()
	}
	if d.Counting == precision.DecimalPlaces {
		if n, ok := d.Digits.DivPrec(decimal.NewFromInt(1), 0); ok && n.Mantissa().IsInt64() {
			return precision.ParsePrecision(int(n.Mantissa().Int64()))
		}
	}
	return "the venue precision"
}

// AmountToPrecision formats an order amount. Amounts are truncated so a size
// is never rounded up past what the caller holds.
func (e *Exchange) AmountToPrecision(symbol string, amount decimal.Literal) (string, error) {
	m, err := e.Market(symbol)
	if err != nil {
		return "", err
	}
	return e.format(amount, e.directive(m.Precision.Amount, precision.Truncate), "amount", symbol, true)
}

// PriceToPrecision formats an order price, rounding to the nearest increment.
func (e *Exchange) PriceToPrecision(symbol string, price decimal.Literal) (string, error) {
	m, err := e.Market(symbol)
	if err != nil {
		return "", err
	}
	return e.format(price, e.directive(m.Precision.Price, precision.Round), "price", symbol, true)
}

// CostToPrecision formats a quote cost at the price precision, truncating.
func (e *Exchange) CostToPrecision(symbol string, cost decimal.Literal) (string, error) {
	m, err := e.Market(symbol)
	if err != nil {
		return "", err
	}
	return e.format(cost, e.directive(m.Precision.Price, precision.Truncate), "cost", symbol, true)
}

// FeeToPrecision formats a fee at the price precision, rounding.
func (e *Exchange) FeeToPrecision(symbol string, fee decimal.Literal) (string, error) {
	m, err := e.Market(symbol)
	if err != nil {
		return "", err
	}
	return e.format(fee, e.directive(m.Precision.Price, precision.Round), "fee", symbol, false)
}

// CurrencyToPrecision formats an amount of a currency, rounding. A non-empty
// network uses that network's precision when it declares one.
func (e *Exchange) CurrencyToPrecision(code string, amount decimal.Literal, network string) (string, error) {
	c, err := e.Currency(code)
	if err != nil {
		return "", err
	}
	return e.format(amount, e.directive(c.PrecisionFor(network), precision.Round), "amount", code, false)
}
