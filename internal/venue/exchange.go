// Package venue is the adapter surface one venue connection is driven through:
// market metadata, precision helpers and the rate limited call gate.
package venue

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/precision"
	"github.com/vadiminshakov/venuekit/pkg/retrier"
)

var (
	// ErrUnknownMarket is returned for a symbol that has not been loaded.
	ErrUnknownMarket = errors.New("unknown market")
	// ErrUnknownCurrency is returned for a currency code that has not been loaded.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Throttler admits outbound calls against the venue's rate limit.
type Throttler interface {
	Throttle(ctx context.Context, cost float64) error
}

// MarketLoader fetches the venue's market metadata.
type MarketLoader interface {
	LoadMarkets(ctx context.Context) ([]domain.Market, error)
}

// Exchange is one venue connection.
type Exchange struct {
	id              string
	precisionMode   precision.CountMode
	paddingMode     precision.PaddingMode
	enableRateLimit bool

	throttler Throttler
	retrier   *retrier.Retrier
	logger    *zap.Logger
	endpoints domain.Endpoints
	onReject  RejectFunc

	mu         sync.RWMutex
	markets    map[string]domain.Market
	byID       map[string]string
	currencies map[string]domain.Currency
}

// RejectFunc is told about calls the limiter refused.
type RejectFunc func(endpoint string, cost float64, err error)

// Option configures an Exchange.
type Option func(*Exchange)

// WithPrecisionMode sets how market precision values are counted.
func WithPrecisionMode(m precision.CountMode) Option {
	return func(e *Exchange) {
		e.precisionMode = m
	}
}

// WithPaddingMode sets the padding applied by every helper.
func WithPaddingMode(m precision.PaddingMode) Option {
	return func(e *Exchange) {
		e.paddingMode = m
	}
}

// WithThrottler enables rate limiting through t.
func WithThrottler(t Throttler) Option {
	return func(e *Exchange) {
		e.throttler = t
		e.enableRateLimit = t != nil
	}
}

// WithRateLimitEnabled switches rate limiting on or off.
func WithRateLimitEnabled(enabled bool) Option {
	return func(e *Exchange) {
		e.enableRateLimit = enabled
	}
}

// WithRetrier sets the transport retry policy.
func WithRetrier(r *retrier.Retrier) Option {
	return func(e *Exchange) {
		if r != nil {
			e.retrier = r
		}
	}
}

// WithEndpoints sets the static endpoint weights.
func WithEndpoints(ep domain.Endpoints) Option {
	return func(e *Exchange) {
		e.endpoints = ep
	}
}

// WithRejectHook sets the callback invoked when the limiter refuses a call.
func WithRejectHook(fn RejectFunc) Option {
	return func(e *Exchange) {
		e.onReject = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exchange) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Exchange for the venue id.
func New(id string, opts ...Option) (*Exchange, error) {
	e := &Exchange{
		id:            id,
		precisionMode: precision.DecimalPlaces,
		paddingMode:   precision.NoPadding,
		retrier:       retrier.New(retrier.WithMaxRetries(0)),
		logger:        zap.NewNop(),
		endpoints:     domain.Endpoints{},
		markets:       map[string]domain.Market{},
		byID:          map[string]string{},
		currencies:    map[string]domain.Currency{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if !e.precisionMode.IsValid() {
		return nil, errors.Errorf("unknown precision mode %d", e.precisionMode)
	}
	if !e.paddingMode.IsValid() {
		return nil, errors.Errorf("unknown padding mode %d", e.paddingMode)
	}
	if e.enableRateLimit && e.throttler == nil {
		return nil, errors.New("rate limiting enabled without a throttler")
	}
	e.logger = e.logger.With(zap.String("venue", id))

	return e, nil
}

// ID returns the venue id.
func (e *Exchange) ID() string { return e.id }

// PrecisionMode returns how market precision values are counted.
func (e *Exchange) PrecisionMode() precision.CountMode { return e.precisionMode }

// PaddingMode returns the padding applied by every helper.
func (e *Exchange) PaddingMode() precision.PaddingMode { return e.paddingMode }

// RateLimitEnabled reports whether Call throttles.
func (e *Exchange) RateLimitEnabled() bool { return e.enableRateLimit }

// SetMarkets replaces the loaded markets.
func (e *Exchange) SetMarkets(markets []domain.Market) {
	bySymbol := make(map[string]domain.Market, len(markets))
	byID := make(map[string]string, len(markets))
	for _, m := range markets {
		bySymbol[m.Symbol] = m
		if m.ID != "" {
			byID[m.ID] = m.Symbol
		}
	}

	e.mu.Lock()
	e.markets = bySymbol
	e.byID = byID
	e.mu.Unlock()
}

// SetCurrencies replaces the loaded currencies.
func (e *Exchange) SetCurrencies(currencies []domain.Currency) {
	byCode := make(map[string]domain.Currency, len(currencies))
	for _, c := range currencies {
		byCode[c.Code] = c
	}

	e.mu.Lock()
	e.currencies = byCode
	e.mu.Unlock()
}

// Market returns the market for a unified symbol or a venue symbol id.
func (e *Exchange) Market(symbol string) (domain.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if m, ok := e.markets[symbol]; ok {
		return m, nil
	}
	if unified, ok := e.byID[symbol]; ok {
		return e.markets[unified], nil
	}
	return domain.Market{}, errors.Wrapf(ErrUnknownMarket, "%s on %s", symbol, e.id)
}

// Markets returns the loaded markets sorted by symbol.
func (e *Exchange) Markets() []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Market, 0, len(e.markets))
	for _, m := range e.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Currency returns the currency for a code.
func (e *Exchange) Currency(code string) (domain.Currency, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.currencies[code]
	if !ok {
		return domain.Currency{}, errors.Wrapf(ErrUnknownCurrency, "%s on %s", code, e.id)
	}
	return c, nil
}

// LoadMarkets fetches markets through the call gate and stores them.
func (e *Exchange) LoadMarkets(ctx context.Context, loader MarketLoader) ([]domain.Market, error) {
	markets, err := CallWithData(ctx, e, "markets", loader.LoadMarkets)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s markets", e.id)
	}

	e.SetMarkets(markets)
	e.logger.Info("markets loaded", zap.Int("count", len(markets)))
	return markets, nil
}
