package domain

import (
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// Precision holds the declared precision of a market. Depending on the
// venue's count mode each value is a digit count or a tick size.
type Precision struct {
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

// Limits holds the order size bounds of a market. Zero means unbounded.
type Limits struct {
	MinAmount decimal.Decimal `json:"min_amount"`
	MinCost   decimal.Decimal `json:"min_cost"`
}

// Market is the trading metadata of one symbol on one venue.
type Market struct {
	// Symbol is the unified "BASE/QUOTE" symbol.
	Symbol string `json:"symbol"`
	// ID is the venue's own symbol, e.g. "BTCUSDT".
	ID        string     `json:"id"`
	Pair      Pair       `json:"pair"`
	Type      MarketType `json:"type"`
	Precision Precision  `json:"precision"`
	Limits    Limits     `json:"limits"`
	Active    bool       `json:"active"`
}

// NewMarket builds a market keyed by its unified symbol.
func NewMarket(id string, pair Pair, typ MarketType, precision Precision) Market {
	return Market{
		Symbol:    pair.Unified(),
		ID:        id,
		Pair:      pair,
		Type:      typ,
		Precision: precision,
		Active:    true,
	}
}
