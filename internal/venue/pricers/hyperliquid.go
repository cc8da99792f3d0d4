package pricers

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// HyperliquidMids is the part of the Hyperliquid info client the pricer uses.
type HyperliquidMids interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer reads mid prices from the public info API.
type HyperliquidPricer struct {
	info HyperliquidMids
}

// NewHyperliquidPricer creates a pricer.
func NewHyperliquidPricer(info HyperliquidMids) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

// Price implements venue.Pricer. Mids are keyed by base coin.
func (p *HyperliquidPricer) Price(ctx context.Context, m domain.Market) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Decimal{}, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "hyperliquid all mids")
	}
	return parsePrice("hyperliquid", m.Pair.From, mids[m.Pair.From])
}
