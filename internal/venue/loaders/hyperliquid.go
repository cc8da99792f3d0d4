package loaders

import (
	"context"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
)

// hyperliquidMaxPerpDecimals bounds perp prices: a price may carry at most
// this many decimals minus the asset's size decimals.
const hyperliquidMaxPerpDecimals = 6

// hyperliquidQuote is the settlement asset of every Hyperliquid perp.
const hyperliquidQuote = "USDC"

// HyperliquidInfo is the part of the Hyperliquid info client the loader uses.
type HyperliquidInfo interface {
	Meta(ctx context.Context) (*hyperliquid.Meta, error)
}

// HyperliquidLoader loads perp markets from Hyperliquid meta.
type HyperliquidLoader struct {
	info HyperliquidInfo
}

// NewHyperliquidLoader creates a loader.
func NewHyperliquidLoader(info HyperliquidInfo) *HyperliquidLoader {
	return &HyperliquidLoader{info: info}
}

// LoadMarkets fetches and converts the markets.
func (l *HyperliquidLoader) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	meta, err := l.info.Meta(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid meta")
	}
	if meta == nil {
		return nil, errors.New("hyperliquid meta: empty response")
	}

	markets := make([]domain.Market, 0, len(meta.Universe))
	for _, asset := range meta.Universe {
		m, err := hyperliquidMarket(asset.Name, asset.SzDecimals)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func hyperliquidMarket(coin string, szDecimals int) (domain.Market, error) {
	if coin == "" {
		return domain.Market{}, errors.New("hyperliquid asset without a name")
	}
	if szDecimals < 0 || szDecimals > hyperliquidMaxPerpDecimals {
		return domain.Market{}, errors.Errorf("hyperliquid %s: szDecimals %d out of range", coin, szDecimals)
	}

	pair := domain.Pair{From: coin, To: hyperliquidQuote}
	return domain.NewMarket(coin, pair, domain.MarketTypePerp, domain.Precision{
		Amount: decimal.New(1, int32(szDecimals)),
		Price:  decimal.New(1, int32(hyperliquidMaxPerpDecimals-szDecimals)),
	}), nil
}
