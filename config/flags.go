package config

import (
	"flag"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Get reads settings from --config when given, otherwise builds a single
// venue from the remaining flags.
func Get(name string, args []string) (Settings, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	venueFlag := fs.String("venue", "binance", "venue id: binance, bybit or hyperliquid")
	testnet := fs.Bool("testnet", false, "use the venue testnet")
	mode := fs.String("precision-mode", "tick", "how market precision is counted: decimals, significant or tick")
	padding := fs.String("padding", "none", "padding mode: none or zero")
	symbols := fs.String("symbols", "", "comma separated venue symbols to load, example: BTCUSDT,ETHUSDT")
	algorithm := fs.String("algorithm", "leaky_bucket", "limiter algorithm: leaky_bucket or rolling_window")
	every := fs.Duration("rate-every", 50*time.Millisecond, "minimal interval between requests of cost one")
	capacity := fs.String("capacity", "1", "leaky bucket capacity")
	window := fs.Duration("window", time.Minute, "rolling window length")
	maxWeight := fs.String("max-weight", "", "rolling window budget, defaults to window / rate-every")
	queueDepth := fs.Int("queue-depth", 2000, "max pending requests per venue")
	noLimit := fs.Bool("no-rate-limit", false, "disable rate limiting")
	listen := fs.String("listen", defaultListen, "status server address")
	cacheDir := fs.String("cache-dir", defaultCacheDir, "market metadata cache directory")
	redisAddr := fs.String("redis", "", "redis address for admission stats, empty keeps them in memory")
	clientRPS := fs.Float64("client-rps", defaultClientRPS, "status server requests per second per client")
	tlsDomains := fs.String("tls-domains", "", "comma separated domains to serve over HTTPS with ACME certificates")
	tlsCache := fs.String("tls-cache", "", "ACME certificate cache directory")

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}
	if *path != "" {
		return Load(*path)
	}

	enabled := !*noLimit
	tmp := SettingsTmp{
		Listen:    *listen,
		CacheDir:  *cacheDir,
		RedisAddr: *redisAddr,
		ClientRPS: *clientRPS,
		Venues: []ConfigTmp{{
			Venue:     *venueFlag,
			Testnet:   *testnet,
			Precision: *mode,
			Padding:   *padding,
			Symbols:   splitList(*symbols),
			RateLimit: RateLimitTmp{
				Enabled:       &enabled,
				Algorithm:     *algorithm,
				Every:         *every,
				Capacity:      *capacity,
				Window:        *window,
				MaxWeight:     *maxWeight,
				MaxQueueDepth: *queueDepth,
			},
		}},
	}

	c, err := tmp.Venues[0].toConfig()
	if err != nil {
		return Settings{}, errors.Wrapf(err, "invalid flags for venue %q", *venueFlag)
	}

	return Settings{
		Listen:      tmp.Listen,
		CacheDir:    tmp.CacheDir,
		RedisAddr:   tmp.RedisAddr,
		ClientRPS:   tmp.ClientRPS,
		TLSDomains:  splitList(*tlsDomains),
		TLSCacheDir: *tlsCache,
		Venues:      []Config{c},
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
