package loaders

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/venuekit/internal/domain"
)

// BybitLoader loads spot markets from Bybit v5 instruments info.
type BybitLoader struct {
	client *bybit.Client
	symbol string
}

// NewBybitLoader creates a loader. An empty symbol loads every spot market.
func NewBybitLoader(client *bybit.Client, symbol string) *BybitLoader {
	return &BybitLoader{client: client, symbol: symbol}
}

// bybitSpotInstrument is the subset of a Bybit spot instrument the loader reads.
type bybitSpotInstrument struct {
	Symbol        string
	BaseCoin      string
	QuoteCoin     string
	Status        string
	TickSize      string
	BasePrecision string
	MinOrderQty   string
	MinOrderAmt   string
}

// LoadMarkets fetches and converts the markets. The SDK call does not take a
// context, so ctx is only checked before the request.
func (l *BybitLoader) LoadMarkets(ctx context.Context) ([]domain.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	param := bybit.V5GetInstrumentsInfoParam{Category: "spot"}
	if l.symbol != "" {
		symbol := bybit.SymbolV5(l.symbol)
		param.Symbol = &symbol
	}

	res, err := l.client.V5().Market().GetInstrumentsInfo(param)
	if err != nil {
		return nil, errors.Wrap(err, "bybit instruments info")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("bybit instruments info: no spot result")
	}

	markets := make([]domain.Market, 0, len(res.Result.Spot.List))
	for _, it := range res.Result.Spot.List {
		m, err := bybitMarket(bybitSpotInstrument{
			Symbol:        string(it.Symbol),
			BaseCoin:      string(it.BaseCoin),
			QuoteCoin:     string(it.QuoteCoin),
			Status:        string(it.Status),
			TickSize:      it.PriceFilter.TickSize,
			BasePrecision: it.LotSizeFilter.BasePrecision,
			MinOrderQty:   it.LotSizeFilter.MinOrderQty,
			MinOrderAmt:   it.LotSizeFilter.MinOrderAmt,
		})
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func bybitMarket(it bybitSpotInstrument) (domain.Market, error) {
	price, err := parseTick("bybit "+it.Symbol+" tickSize", it.TickSize)
	if err != nil {
		return domain.Market{}, err
	}
	amount, err := parseTick("bybit "+it.Symbol+" basePrecision", it.BasePrecision)
	if err != nil {
		return domain.Market{}, err
	}
	minQty, err := parseOptional("bybit "+it.Symbol+" minOrderQty", it.MinOrderQty)
	if err != nil {
		return domain.Market{}, err
	}
	minAmt, err := parseOptional("bybit "+it.Symbol+" minOrderAmt", it.MinOrderAmt)
	if err != nil {
		return domain.Market{}, err
	}

	pair := domain.Pair{From: it.BaseCoin, To: it.QuoteCoin}
	m := domain.NewMarket(it.Symbol, pair, domain.MarketTypeSpot, domain.Precision{Amount: amount, Price: price})
	m.Limits = domain.Limits{MinAmount: minQty, MinCost: minAmt}
	m.Active = it.Status == "Trading"
	return m, nil
}
