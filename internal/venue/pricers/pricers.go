// Package pricers fetches last prices from the venue SDKs.
package pricers

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

func parsePrice(venue, symbol, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errors.Errorf("%s API returned empty price for %s", venue, symbol)
	}
	p, err := decimal.Parse(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "%s price for %s", venue, symbol)
	}
	return p, nil
}
