package internal

import (
	"context"
	"fmt"
	"os"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/config"
	"github.com/vadiminshakov/venuekit/internal/clients"
	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/internal/venue"
	"github.com/vadiminshakov/venuekit/internal/venue/loaders"
	"github.com/vadiminshakov/venuekit/internal/venue/pricers"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

const (
	bybitTestnetURL       = "https://api-testnet.bybit.com"
	hyperliquidMainnetURL = "https://api.hyperliquid.xyz"
	hyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

// NewClient creates the SDK client of a venue. Credentials come from the
// environment and are optional: market metadata is public.
func NewClient(cfg config.Config) (any, error) {
	switch cfg.Venue {
	case "binance":
		binance.UseTestnet = cfg.Testnet
		return clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET")), nil
	case "bybit":
		c := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		if cfg.Testnet {
			c = c.WithBaseURL(bybitTestnetURL)
		}
		return c, nil
	case "hyperliquid":
		url := hyperliquidMainnetURL
		if cfg.Testnet {
			url = hyperliquidTestnetURL
		}
		return clients.NewHyperliquidClient(os.Getenv("HYPERLIQUID_PRIVATE_KEY"), url)
	default:
		return nil, errors.Errorf("unsupported venue %q", cfg.Venue)
	}
}

// NewMarketLoader creates the market loader for the client type.
// This is the single point of dispatch to venue-specific loaders.
func NewMarketLoader(client any, symbols []string) (venue.MarketLoader, error) {
	switch c := client.(type) {
	case *binance.Client:
		return loaders.NewBinanceLoader(c, symbols...), nil
	case *bybit.Client:
		if len(symbols) == 1 {
			return loaders.NewBybitLoader(c, symbols[0]), nil
		}
		return filterSymbols(loaders.NewBybitLoader(c, ""), symbols), nil
	case *clients.HyperliquidClient:
		return filterSymbols(loaders.NewHyperliquidLoader(c.Info()), symbols), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

// NewPricer creates the last price source for the client type.
func NewPricer(client any) (venue.Pricer, error) {
	switch c := client.(type) {
	case *binance.Client:
		return pricers.NewBinancePricer(c), nil
	case *bybit.Client:
		return pricers.NewBybitPricer(c), nil
	case *clients.HyperliquidClient:
		return pricers.NewHyperliquidPricer(c.Info()), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type symbolFilter struct {
	next    venue.MarketLoader
	symbols map[string]struct{}
}

// filterSymbols keeps only markets whose venue id or unified symbol is listed.
func filterSymbols(next venue.MarketLoader, symbols []string) venue.MarketLoader {
	if len(symbols) == 0 {
		return next
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = struct{}{}
	}
	return &symbolFilter{next: next, symbols: set}
}

func (f *symbolFilter) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, err := f.next.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}

	out := markets[:0]
	for _, m := range markets {
		_, byID := f.symbols[strings.ToUpper(m.ID)]
		_, bySymbol := f.symbols[strings.ToUpper(m.Symbol)]
		if byID || bySymbol {
			out = append(out, m)
		}
	}
	return out, nil
}

// TuneRateLimit fills an unset rolling window budget from the limits the
// venue publishes. Only Binance publishes them; other venues keep rl.
func TuneRateLimit(ctx context.Context, client any, rl config.RateLimit, logger *zap.Logger) config.RateLimit {
	c, ok := client.(*binance.Client)
	if !ok || rl.Algorithm != throttle.RollingWindow || rl.MaxWeight > 0 {
		return rl
	}

	window, weight, err := loaders.NewBinanceLoader(c).RequestWeight(ctx)
	if err != nil {
		logger.Warn("failed to read binance request weight, keeping defaults", zap.Error(err))
		return rl
	}
	rl.Window = window
	rl.MaxWeight = weight
	logger.Info("rate limit tuned from venue", zap.Duration("window", window), zap.Float64("max_weight", weight))
	return rl
}
