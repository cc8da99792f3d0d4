// Package loaders maps venue instrument metadata onto domain markets.
// Every loader produces tick sizes, so exchanges built on them count
// precision in TickSize mode.
package loaders

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// parseTick parses a venue tick size and rejects zero or negative values.
func parseTick(field, s string) (decimal.Decimal, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s", field)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, errors.Errorf("%s must be positive, got %s", field, s)
	}
	return d.Reduce(), nil
}

// parseOptional parses an optional venue number, treating "" as zero.
func parseOptional(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s", field)
	}
	return d.Reduce(), nil
}
