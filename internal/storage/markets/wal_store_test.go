package markets

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

func newTestStore(t *testing.T) (*WALStore, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "test_markets_wal_*")
	require.NoError(t, err, "Failed to create temp directory")
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	return store, dir
}

func btcMarket(tick string) domain.Market {
	return domain.NewMarket("BTCUSDT", domain.Pair{From: "BTC", To: "USDT"}, domain.MarketTypeSpot, domain.Precision{
		Amount: decimal.MustParse("0.00001"),
		Price:  decimal.MustParse(tick),
	})
}

func TestWALStore_SaveLatest(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save("binance", []domain.Market{btcMarket("0.1")}, at))
	require.NoError(t, store.Save("bybit", []domain.Market{btcMarket("0.5")}, at))
	require.NoError(t, store.Save("binance", []domain.Market{btcMarket("0.01")}, at.Add(time.Hour)))

	snap, ok, err := store.Latest("binance")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "binance", snap.Venue)
	assert.Equal(t, at.Add(time.Hour), snap.SavedAt)
	require.Len(t, snap.Markets, 1)
	assert.Equal(t, "0.01", snap.Markets[0].Precision.Price.String())
	assert.Equal(t, "BTC/USDT", snap.Markets[0].Symbol)

	_, ok, err = store.Latest("hyperliquid")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"binance", "bybit"}, store.Venues())
}

func TestWALStore_Reopen(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Save("bybit", []domain.Market{btcMarket("0.5")}, time.Now()))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	snap, ok, err := reopened.Latest("bybit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.5", snap.Markets[0].Precision.Price.String())
}

func TestWALStore_Validation(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	assert.Error(t, store.Save("", nil, time.Now()))

	var nilStore *WALStore
	assert.Error(t, nilStore.Save("x", nil, time.Now()))
	_, _, err := nilStore.Latest("x")
	assert.Error(t, err)
	assert.Nil(t, nilStore.Venues())
}
