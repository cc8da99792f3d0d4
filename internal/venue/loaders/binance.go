package loaders

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
)

// BinanceLoader loads spot markets from Binance exchangeInfo.
type BinanceLoader struct {
	client  *binance.Client
	symbols []string
}

// NewBinanceLoader creates a loader. With no symbols every listed market is loaded.
func NewBinanceLoader(client *binance.Client, symbols ...string) *BinanceLoader {
	return &BinanceLoader{client: client, symbols: symbols}
}

func (l *BinanceLoader) exchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error) {
	svc := l.client.NewExchangeInfoService()
	if len(l.symbols) > 0 {
		svc = svc.Symbols(l.symbols...)
	}
	info, err := svc.Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance exchange info")
	}
	return info, nil
}

// LoadMarkets fetches and converts the markets.
func (l *BinanceLoader) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	info, err := l.exchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	markets := make([]domain.Market, 0, len(info.Symbols))
	for i := range info.Symbols {
		m, err := binanceMarket(&info.Symbols[i])
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// RequestWeight returns the REQUEST_WEIGHT window Binance declares.
func (l *BinanceLoader) RequestWeight(ctx context.Context) (time.Duration, float64, error) {
	info, err := l.exchangeInfo(ctx)
	if err != nil {
		return 0, 0, err
	}
	window, weight, ok := BinanceRequestWeight(info.RateLimits)
	if !ok {
		return 0, 0, errors.New("binance declares no REQUEST_WEIGHT limit")
	}
	return window, weight, nil
}

// BinanceRequestWeight picks the REQUEST_WEIGHT limit out of the declared rate limits.
func BinanceRequestWeight(limits []binance.RateLimit) (time.Duration, float64, bool) {
	for _, rl := range limits {
		if rl.RateLimitType != "REQUEST_WEIGHT" {
			continue
		}
		var unit time.Duration
		switch rl.Interval {
		case "SECOND":
			unit = time.Second
		case "MINUTE":
			unit = time.Minute
		case "HOUR":
			unit = time.Hour
		case "DAY":
			unit = 24 * time.Hour
		default:
			continue
		}
		n := rl.IntervalNum
		if n <= 0 {
			n = 1
		}
		return time.Duration(n) * unit, float64(rl.Limit), true
	}
	return 0, 0, false
}

func binanceMarket(s *binance.Symbol) (domain.Market, error) {
	pf := s.PriceFilter()
	ls := s.LotSizeFilter()
	if pf == nil || ls == nil {
		return domain.Market{}, errors.Errorf("binance %s: missing PRICE_FILTER or LOT_SIZE", s.Symbol)
	}

	price, err := parseTick("binance "+s.Symbol+" tickSize", pf.TickSize)
	if err != nil {
		return domain.Market{}, err
	}
	amount, err := parseTick("binance "+s.Symbol+" stepSize", ls.StepSize)
	if err != nil {
		return domain.Market{}, err
	}
	minQty, err := parseOptional("binance "+s.Symbol+" minQty", ls.MinQuantity)
	if err != nil {
		return domain.Market{}, err
	}
	minNotional, err := parseOptional("binance "+s.Symbol+" minNotional", binanceMinNotional(s.Filters))
	if err != nil {
		return domain.Market{}, err
	}

	pair := domain.Pair{From: strings.ToUpper(s.BaseAsset), To: strings.ToUpper(s.QuoteAsset)}
	m := domain.NewMarket(s.Symbol, pair, domain.MarketTypeSpot, domain.Precision{Amount: amount, Price: price})
	m.Limits = domain.Limits{MinAmount: minQty, MinCost: minNotional}
	m.Active = s.Status == "TRADING"
	return m, nil
}

// binanceMinNotional reads minNotional from a NOTIONAL or legacy MIN_NOTIONAL filter.
func binanceMinNotional(filters []map[string]interface{}) string {
	for _, f := range filters {
		switch f["filterType"] {
		case "NOTIONAL", "MIN_NOTIONAL":
			if v, ok := f["minNotional"].(string); ok {
				return v
			}
		}
	}
	return ""
}
