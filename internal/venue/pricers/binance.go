package pricers

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// BinancePricer reads the last spot price.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a pricer.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// Price implements venue.Pricer.
func (p *BinancePricer) Price(ctx context.Context, m domain.Market) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(m.ID).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "binance list prices")
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Errorf("binance API returned empty prices for %s", m.ID)
	}
	return parsePrice("binance", m.ID, prices[0].Price)
}
