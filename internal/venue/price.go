package venue

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// TickerEndpoint is the endpoint name last price requests are weighted by.
const TickerEndpoint = "ticker"

// Pricer fetches the last price of a market.
type Pricer interface {
	Price(ctx context.Context, m domain.Market) (decimal.Decimal, error)
}

// PricerFunc adapts a function to Pricer.
type PricerFunc func(ctx context.Context, m domain.Market) (decimal.Decimal, error)

// Price calls f(ctx, m).
func (f PricerFunc) Price(ctx context.Context, m domain.Market) (decimal.Decimal, error) {
	return f(ctx, m)
}

// Price fetches the last price of symbol through the call gate and formats
// it at the market's price precision.
func (e *Exchange) Price(ctx context.Context, p Pricer, symbol string) (string, error) {
	m, err := e.Market(symbol)
	if err != nil {
		return "", err
	}

	price, err := CallWithData(ctx, e, TickerEndpoint, func(ctx context.Context) (decimal.Decimal, error) {
		return p.Price(ctx, m)
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s price on %s", symbol, e.id)
	}
	return e.PriceToPrecision(m.Symbol, decimal.Text(price.String()))
}
