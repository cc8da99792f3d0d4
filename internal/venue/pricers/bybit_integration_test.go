//go:build integration

package pricers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/venuekit/internal/clients"
	"github.com/vadiminshakov/venuekit/internal/domain"
)

// TestBybitPricer_Integration calls the real Bybit API.
// To run this test, use: go test -tags=integration -v ./...
func TestBybitPricer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	p := NewBybitPricer(clients.NewBybitClient("", ""))
	m := domain.NewMarket("BTCUSDT", domain.Pair{From: "BTC", To: "USDT"}, domain.MarketTypeSpot, domain.Precision{})

	price, err := p.Price(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, 1, price.Sign(), "expected a positive price, got %s", price)
	t.Logf("Current %s price: %s", m.Symbol, price)
}
