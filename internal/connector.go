package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/config"
	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/internal/storage/markets"
	"github.com/vadiminshakov/venuekit/internal/venue"
	"github.com/vadiminshakov/venuekit/pkg/retrier"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

// MarketCache persists the last markets loaded from each venue.
type MarketCache interface {
	Save(venue string, markets []domain.Market, at time.Time) error
	Latest(venue string) (markets.Snapshot, bool, error)
}

// ConnectorDeps are the shared collaborators of every connector.
type ConnectorDeps struct {
	Cache    MarketCache
	Observer throttle.Observer
	OnReject func(venue, endpoint string, cost float64, err error)
	Retrier  *retrier.Retrier
	Logger   *zap.Logger
}

// Connector is one venue connection: its limiter, its exchange adapter and
// the market metadata kept fresh behind them.
type Connector struct {
	Config   config.Config
	Exchange *venue.Exchange
	Limiter  *throttle.Limiter
	// Pricer serves last prices; nil disables them.
	Pricer venue.Pricer

	loader venue.MarketLoader
	cache  MarketCache
	logger *zap.Logger
}

// NewConnector creates a connector. Markets declared in the config are
// available immediately and remain the last resort when loading fails.
func NewConnector(conf config.Config, loader venue.MarketLoader, deps ConnectorDeps) (*Connector, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("venue", conf.Venue))

	rt := deps.Retrier
	if rt == nil {
		rt = retrier.New(retrier.WithLogger(logger))
	}

	opts := []venue.Option{
		venue.WithPrecisionMode(conf.Precision),
		venue.WithPaddingMode(conf.Padding),
		venue.WithEndpoints(conf.Endpoints),
		venue.WithRetrier(rt),
		venue.WithLogger(logger),
	}
	if deps.OnReject != nil {
		opts = append(opts, venue.WithRejectHook(func(endpoint string, cost float64, err error) {
			deps.OnReject(conf.Venue, endpoint, cost, err)
		}))
	}

	var limiter *throttle.Limiter
	if conf.RateLimit.Enabled {
		limiterOpts := append(conf.RateLimit.Options(), throttle.WithLogger(logger))
		if deps.Observer != nil {
			limiterOpts = append(limiterOpts, throttle.WithObserver(deps.Observer))
		}
		var err error
		limiter, err = throttle.New(limiterOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s rate limiter", conf.Venue)
		}
		opts = append(opts, venue.WithThrottler(limiter))
	}

	exchange, err := venue.New(conf.Venue, opts...)
	if err != nil {
		if limiter != nil {
			limiter.Close()
		}
		return nil, errors.Wrapf(err, "create %s exchange", conf.Venue)
	}
	exchange.SetMarkets(conf.Markets)
	exchange.SetCurrencies(conf.Currencies)

	return &Connector{
		Config:   conf,
		Exchange: exchange,
		Limiter:  limiter,
		loader:   loader,
		cache:    deps.Cache,
		logger:   logger,
	}, nil
}

// Refresh loads markets from the venue and caches them. When the venue
// cannot be reached the cached snapshot is used, then the configured markets.
func (c *Connector) Refresh(ctx context.Context) error {
	var loadErr error
	if c.loader != nil {
		loaded, err := c.Exchange.LoadMarkets(ctx, c.loader)
		if err == nil {
			if c.cache != nil {
				if err := c.cache.Save(c.Config.Venue, loaded, time.Now()); err != nil {
					c.logger.Warn("failed to cache markets", zap.Error(err))
				}
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		loadErr = err
		c.logger.Warn("market load failed, falling back", zap.Error(err))
	}

	if c.cache != nil {
		snapshot, ok, err := c.cache.Latest(c.Config.Venue)
		if err != nil {
			c.logger.Warn("failed to read cached markets", zap.Error(err))
		}
		if ok && len(snapshot.Markets) > 0 {
			c.Exchange.SetMarkets(snapshot.Markets)
			c.logger.Info("using cached markets",
				zap.Int("count", len(snapshot.Markets)), zap.Time("saved_at", snapshot.SavedAt))
			return nil
		}
	}

	if len(c.Config.Markets) > 0 {
		c.Exchange.SetMarkets(c.Config.Markets)
		c.logger.Info("using configured markets", zap.Int("count", len(c.Config.Markets)))
		return nil
	}

	if loadErr == nil {
		loadErr = errors.New("no market loader")
	}
	return errors.Wrapf(loadErr, "no markets available for %s", c.Config.Venue)
}

// Run refreshes markets every Config.Refresh until ctx ends, then closes the limiter.
func (c *Connector) Run(ctx context.Context) error {
	defer c.Close()

	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("initial market refresh failed", zap.Error(err))
	}

	every := c.Config.Refresh
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("connector stopped")
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("market refresh failed", zap.Error(err))
			}
		}
	}
}

// Close releases the limiter, failing every pending call.
func (c *Connector) Close() {
	if c.Limiter != nil {
		c.Limiter.Close()
	}
}
