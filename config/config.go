// Package config reads the venue settings from a YAML file, falling back to
// command line flags for a single venue.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/precision"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

const (
	defaultListen    = ":8080"
	defaultCacheDir  = "./data/markets"
	defaultClientRPS = 10
	defaultRefresh   = time.Hour
)

// Settings is the process configuration.
type Settings struct {
	Listen    string
	CacheDir  string
	RedisAddr string
	ClientRPS float64
	// TLSDomains switches the status server to ACME certificates.
	TLSDomains  []string
	TLSCacheDir string
	Venues      []Config
}

// Config is the configuration of one venue.
type Config struct {
	Venue     string
	Testnet   bool
	Precision precision.CountMode
	Padding   precision.PaddingMode
	Symbols   []string
	// Refresh is how often markets are reloaded from the venue.
	Refresh    time.Duration
	RateLimit  RateLimit
	Endpoints  domain.Endpoints
	Markets    []domain.Market
	Currencies []domain.Currency
}

// RateLimit configures the venue's limiter.
type RateLimit struct {
	Enabled       bool
	Algorithm     throttle.Algorithm
	RefillRate    float64
	Capacity      float64
	Cost          float64
	Delay         time.Duration
	MaxQueueDepth int
	Window        time.Duration
	MaxWeight     float64
}

// Options converts the settings into limiter options. Unset fields keep the
// limiter defaults.
func (r RateLimit) Options() []throttle.Option {
	opts := []throttle.Option{throttle.WithAlgorithm(r.Algorithm)}
	if r.RefillRate > 0 {
		opts = append(opts, throttle.WithRefillRate(r.RefillRate))
	}
	if r.Capacity > 0 {
		opts = append(opts, throttle.WithCapacity(r.Capacity))
	}
	if r.Cost > 0 {
		opts = append(opts, throttle.WithDefaultCost(r.Cost))
	}
	if r.Delay > 0 {
		opts = append(opts, throttle.WithDelay(r.Delay))
	}
	if r.MaxQueueDepth > 0 {
		opts = append(opts, throttle.WithMaxQueueDepth(r.MaxQueueDepth))
	}
	if r.Window > 0 {
		opts = append(opts, throttle.WithWindow(r.Window))
	}
	if r.MaxWeight > 0 {
		opts = append(opts, throttle.WithMaxWeight(r.MaxWeight))
	}
	return opts
}

// SettingsTmp is the YAML shape of Settings.
type SettingsTmp struct {
	Listen      string      `yaml:"listen,omitempty"`
	CacheDir    string      `yaml:"cache_dir,omitempty"`
	RedisAddr   string      `yaml:"redis_addr,omitempty"`
	ClientRPS   float64     `yaml:"client_rps,omitempty"`
	TLSDomains  []string    `yaml:"tls_domains,omitempty"`
	TLSCacheDir string      `yaml:"tls_cache_dir,omitempty"`
	Venues      []ConfigTmp `yaml:"venues"`
}

// ConfigTmp is the YAML shape of Config. Numeric values are strings so they
// are parsed exactly.
type ConfigTmp struct {
	Venue      string            `yaml:"venue"`
	Testnet    bool              `yaml:"testnet,omitempty"`
	Precision  string            `yaml:"precision_mode,omitempty"`
	Padding    string            `yaml:"padding_mode,omitempty"`
	Symbols    []string          `yaml:"symbols,omitempty"`
	Refresh    time.Duration     `yaml:"refresh_interval,omitempty"`
	RateLimit  RateLimitTmp      `yaml:"rate_limit"`
	Endpoints  map[string]string `yaml:"endpoints,omitempty"`
	Markets    []MarketTmp       `yaml:"markets,omitempty"`
	Currencies []CurrencyTmp     `yaml:"currencies,omitempty"`
}

// RateLimitTmp is the YAML shape of RateLimit.
type RateLimitTmp struct {
	Enabled       *bool         `yaml:"enabled,omitempty"`
	Algorithm     string        `yaml:"algorithm,omitempty"`
	Every         time.Duration `yaml:"every,omitempty"`
	RefillRate    string        `yaml:"refill_rate,omitempty"`
	Capacity      string        `yaml:"capacity,omitempty"`
	Cost          string        `yaml:"cost,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty"`
	MaxQueueDepth int           `yaml:"max_queue_depth,omitempty"`
	Window        time.Duration `yaml:"window,omitempty"`
	MaxWeight     string        `yaml:"max_weight,omitempty"`
}

// MarketTmp is a market declared in the config file.
type MarketTmp struct {
	ID              string `yaml:"id,omitempty"`
	Pair            string `yaml:"pair"`
	Type            string `yaml:"type,omitempty"`
	AmountPrecision string `yaml:"amount_precision"`
	PricePrecision  string `yaml:"price_precision"`
	MinAmount       string `yaml:"min_amount,omitempty"`
	MinCost         string `yaml:"min_cost,omitempty"`
}

// CurrencyTmp is a currency declared in the config file.
type CurrencyTmp struct {
	Code      string            `yaml:"code"`
	Precision string            `yaml:"precision"`
	Networks  map[string]string `yaml:"networks,omitempty"`
}

// Load reads settings from a YAML file.
func Load(path string) (Settings, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(f)
}

// Parse decodes settings from YAML.
func Parse(data []byte) (Settings, error) {
	var tmp SettingsTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Settings{}, errors.Wrap(err, "decode yaml config")
	}

	s := Settings{
		Listen:      tmp.Listen,
		CacheDir:    tmp.CacheDir,
		RedisAddr:   tmp.RedisAddr,
		ClientRPS:   tmp.ClientRPS,
		TLSDomains:  tmp.TLSDomains,
		TLSCacheDir: tmp.TLSCacheDir,
	}
	if s.Listen == "" {
		s.Listen = defaultListen
	}
	if s.CacheDir == "" {
		s.CacheDir = defaultCacheDir
	}
	if s.ClientRPS == 0 {
		s.ClientRPS = defaultClientRPS
	}
	if len(tmp.Venues) == 0 {
		return Settings{}, errors.New("no venues configured")
	}

	seen := make(map[string]struct{}, len(tmp.Venues))
	for _, v := range tmp.Venues {
		c, err := v.toConfig()
		if err != nil {
			return Settings{}, errors.Wrapf(err, "venue %q", v.Venue)
		}
		if _, dup := seen[c.Venue]; dup {
			return Settings{}, errors.Errorf("venue %q configured twice", c.Venue)
		}
		seen[c.Venue] = struct{}{}
		s.Venues = append(s.Venues, c)
	}
	return s, nil
}

func (t ConfigTmp) toConfig() (Config, error) {
	c := Config{
		Venue:     strings.ToLower(strings.TrimSpace(t.Venue)),
		Testnet:   t.Testnet,
		Symbols:   t.Symbols,
		Refresh:   t.Refresh,
		Endpoints: domain.Endpoints{},
	}
	if c.Venue == "" {
		return Config{}, errors.New("'venue' is required")
	}
	if c.Refresh == 0 {
		c.Refresh = defaultRefresh
	}
	if c.Refresh < 0 {
		return Config{}, errors.New("'refresh_interval' must be positive")
	}

	var err error
	if c.Precision, err = precision.ParseCountMode(orDefault(t.Precision, "decimals")); err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'precision_mode'")
	}
	if c.Padding, err = precision.ParsePaddingMode(t.Padding); err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'padding_mode'")
	}
	if c.RateLimit, err = t.RateLimit.toRateLimit(); err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'rate_limit'")
	}

	names := make([]string, 0, len(t.Endpoints))
	for name := range t.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cost, err := parseFloat(t.Endpoints[name])
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect cost of endpoint %q", name)
		}
		if cost < 0 {
			return Config{}, errors.Errorf("cost of endpoint %q must not be negative", name)
		}
		c.Endpoints[name] = domain.Endpoint{Name: name, Cost: cost}
	}

	for _, m := range t.Markets {
		market, err := m.toMarket()
		if err != nil {
			return Config{}, errors.Wrapf(err, "market %q", m.Pair)
		}
		c.Markets = append(c.Markets, market)
	}
	for _, cur := range t.Currencies {
		currency, err := cur.toCurrency()
		if err != nil {
			return Config{}, errors.Wrapf(err, "currency %q", cur.Code)
		}
		c.Currencies = append(c.Currencies, currency)
	}

	return c, nil
}

func (t RateLimitTmp) toRateLimit() (RateLimit, error) {
	r := RateLimit{
		Enabled:       t.Enabled == nil || *t.Enabled,
		Delay:         t.Delay,
		MaxQueueDepth: t.MaxQueueDepth,
		Window:        t.Window,
	}

	var err error
	if r.Algorithm, err = throttle.ParseAlgorithm(orDefault(t.Algorithm, "leaky_bucket")); err != nil {
		return RateLimit{}, err
	}

	if t.RefillRate != "" && t.Every > 0 {
		return RateLimit{}, errors.New("set either 'every' or 'refill_rate', not both")
	}
	if t.Every > 0 {
		r.RefillRate = float64(time.Millisecond) / float64(t.Every)
	}
	if t.RefillRate != "" {
		if r.RefillRate, err = parseFloat(t.RefillRate); err != nil {
			return RateLimit{}, errors.Wrap(err, "'refill_rate'")
		}
	}
	if r.Capacity, err = parseOptionalFloat(t.Capacity); err != nil {
		return RateLimit{}, errors.Wrap(err, "'capacity'")
	}
	if r.Cost, err = parseOptionalFloat(t.Cost); err != nil {
		return RateLimit{}, errors.Wrap(err, "'cost'")
	}
	if r.MaxWeight, err = parseOptionalFloat(t.MaxWeight); err != nil {
		return RateLimit{}, errors.Wrap(err, "'max_weight'")
	}
	if r.RefillRate < 0 || r.Capacity < 0 || r.Cost < 0 || r.MaxWeight < 0 || r.MaxQueueDepth < 0 {
		return RateLimit{}, errors.New("values must not be negative")
	}

	return r, nil
}

func (t MarketTmp) toMarket() (domain.Market, error) {
	pair, err := domain.ParsePair(t.Pair)
	if err != nil {
		return domain.Market{}, err
	}

	typ := domain.MarketType(orDefault(t.Type, string(domain.MarketTypeSpot)))
	if !typ.IsValid() {
		return domain.Market{}, errors.Errorf("unknown market type %q", t.Type)
	}

	amount, err := decimal.Parse(t.AmountPrecision)
	if err != nil {
		return domain.Market{}, errors.Wrap(err, "incorrect 'amount_precision'")
	}
	price, err := decimal.Parse(t.PricePrecision)
	if err != nil {
		return domain.Market{}, errors.Wrap(err, "incorrect 'price_precision'")
	}

	id := t.ID
	if id == "" {
		id = pair.Symbol()
	}
	m := domain.NewMarket(id, pair, typ, domain.Precision{Amount: amount, Price: price})

	if t.MinAmount != "" {
		if m.Limits.MinAmount, err = decimal.Parse(t.MinAmount); err != nil {
			return domain.Market{}, errors.Wrap(err, "incorrect 'min_amount'")
		}
	}
	if t.MinCost != "" {
		if m.Limits.MinCost, err = decimal.Parse(t.MinCost); err != nil {
			return domain.Market{}, errors.Wrap(err, "incorrect 'min_cost'")
		}
	}
	return m, nil
}

func (t CurrencyTmp) toCurrency() (domain.Currency, error) {
	if t.Code == "" {
		return domain.Currency{}, errors.New("'code' is required")
	}
	p, err := decimal.Parse(t.Precision)
	if err != nil {
		return domain.Currency{}, errors.Wrap(err, "incorrect 'precision'")
	}

	c := domain.Currency{Code: strings.ToUpper(t.Code), Precision: p}
	if len(t.Networks) > 0 {
		c.Networks = make(map[string]domain.Network, len(t.Networks))
		for id, raw := range t.Networks {
			np, err := decimal.Parse(raw)
			if err != nil {
				return domain.Currency{}, errors.Wrapf(err, "incorrect precision of network %q", id)
			}
			c.Networks[id] = domain.Network{ID: id, Precision: np}
		}
	}
	return c, nil
}

func parseFloat(s string) (float64, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Shopspring().Float64()
	return f, nil
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return parseFloat(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
