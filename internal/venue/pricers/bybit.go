package pricers

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// BybitPricer reads the last spot price from v5 tickers.
type BybitPricer struct {
	client *bybit.Client
}

// NewBybitPricer creates a pricer.
func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// Price implements venue.Pricer. The SDK call takes no context.
func (p *BybitPricer) Price(ctx context.Context, m domain.Market) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}

	symbol := bybit.SymbolV5(m.ID)
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "bybit tickers")
	}
	if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Errorf("bybit API returned empty prices for %s", m.ID)
	}
	return parsePrice("bybit", m.ID, result.Result.Spot.List[0].LastPrice)
}
