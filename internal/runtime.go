// Package internal wires configured venues into running connectors and the
// status server.
package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/venuekit/config"
	"github.com/vadiminshakov/venuekit/internal/events"
	"github.com/vadiminshakov/venuekit/internal/stats"
	"github.com/vadiminshakov/venuekit/internal/storage/markets"
	"github.com/vadiminshakov/venuekit/internal/web"
)

const (
	broadcastBuffer = 256
	statsBuffer     = 4096
)

// Run starts every configured venue and the status server, and blocks until
// ctx ends or one of them fails.
func Run(ctx context.Context, settings config.Settings, logger *zap.Logger) error {
	cache, err := markets.NewWALStore(settings.CacheDir)
	if err != nil {
		return errors.Wrap(err, "open market cache")
	}
	defer cache.Close()

	broadcaster := events.NewAdmissionBroadcaster(broadcastBuffer)
	counters := stats.NewMemorySink()
	var sink stats.Sink = counters
	if settings.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		defer rdb.Close()
		sink = stats.Multi(counters, stats.NewRedisSink(rdb))
	}
	recorder := stats.NewRecorder(sink, statsBuffer, logger)

	connectors := make([]*Connector, 0, len(settings.Venues))
	closeAll := func() {
		for _, c := range connectors {
			c.Close()
		}
	}

	for _, conf := range settings.Venues {
		client, err := NewClient(conf)
		if err != nil {
			closeAll()
			return err
		}
		conf.RateLimit = TuneRateLimit(ctx, client, conf.RateLimit, logger.With(zap.String("venue", conf.Venue)))

		loader, err := NewMarketLoader(client, conf.Symbols)
		if err != nil {
			closeAll()
			return err
		}

		pricer, err := NewPricer(client)
		if err != nil {
			closeAll()
			return err
		}

		conn, err := NewConnector(conf, loader, ConnectorDeps{
			Cache:    cache,
			Observer: events.Observers(broadcaster.ObserverFor(conf.Venue), recorder.ObserverFor(conf.Venue)),
			OnReject: func(venue, endpoint string, cost float64, _ error) {
				recorder.Add(stats.Event{Venue: venue, Endpoint: endpoint, Kind: stats.KindRejected, Cost: cost, At: time.Now()})
			},
			Logger: logger,
		})
		if err != nil {
			closeAll()
			return err
		}
		conn.Pricer = pricer
		connectors = append(connectors, conn)
	}

	venues := make([]web.Venue, 0, len(connectors))
	for _, c := range connectors {
		venues = append(venues, web.Venue{Exchange: c.Exchange, Limiter: c.Limiter, Pricer: c.Pricer})
	}
	burst := int(settings.ClientRPS)
	if burst < 1 {
		burst = 1
	}
	server := web.NewServer(settings.Listen, venues,
		web.WithBroadcaster(broadcaster),
		web.WithCounters(counters),
		web.WithClientLimiter(web.NewClientLimiter(settings.ClientRPS, burst)),
		web.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range connectors {
		g.Go(func() error { return c.Run(gctx) })
	}
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error {
		if len(settings.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, settings.TLSDomains, settings.TLSCacheDir)
		}
		return server.Start(gctx)
	})

	logger.Info("venuekit started", zap.Int("venues", len(connectors)), zap.String("listen", settings.Listen))
	return g.Wait()
}
