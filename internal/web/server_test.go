package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/internal/events"
	"github.com/vadiminshakov/venuekit/internal/stats"
	"github.com/vadiminshakov/venuekit/internal/venue"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/precision"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *throttle.Limiter) {
	t.Helper()

	l, err := throttle.New(throttle.WithCapacity(10), throttle.WithRefillRate(1))
	require.NoError(t, err)
	t.Cleanup(l.Close)

	e, err := venue.New("binance", venue.WithPrecisionMode(precision.TickSize), venue.WithThrottler(l), venue.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	e.SetMarkets([]domain.Market{domain.NewMarket("BTCUSDT", domain.Pair{From: "BTC", To: "USDT"}, domain.MarketTypeSpot, domain.Precision{
		Amount: decimal.MustParse("0.00001"),
		Price:  decimal.MustParse("0.01"),
	})})
	e.SetCurrencies([]domain.Currency{{Code: "USDT", Precision: decimal.MustParse("0.01")}})

	pricer := venue.PricerFunc(func(ctx context.Context, m domain.Market) (decimal.Decimal, error) {
		return decimal.MustParse("64000.129"), nil
	})
	return NewServer(":0", []Venue{{Exchange: e, Limiter: l, Pricer: pricer}}, opts...), l
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Limiters(t *testing.T) {
	counters := stats.NewMemorySink()
	require.NoError(t, counters.Record(context.Background(), stats.Event{Venue: "binance", Kind: stats.KindAdmitted, Cost: 3}))

	s, l := newTestServer(t, WithCounters(counters))
	require.NoError(t, l.Throttle(context.Background(), 3))

	rec := get(t, s.Handler(), "/api/limiters")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []LimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "binance", out[0].Venue)
	assert.True(t, out[0].Enabled)
	assert.Equal(t, 1, out[0].Markets)
	require.NotNil(t, out[0].Limiter)
	assert.Equal(t, uint64(1), out[0].Limiter.Admitted)
	require.NotNil(t, out[0].Counters)
	assert.Equal(t, 3.0, out[0].Counters.Weight)
	assert.Contains(t, rec.Body.String(), `"algorithm":"leaky_bucket"`)
}

func TestServer_Markets(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/api/markets?venue=binance")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"BTC/USDT"`)
	assert.Contains(t, rec.Body.String(), `"price":"0.01"`)

	rec = get(t, s.Handler(), "/api/markets?venue=kraken")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Format(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"amount", "/api/format?venue=binance&symbol=BTC/USDT&kind=amount&value=0.123456789", http.StatusOK, `{"result":"0.12345"}`},
		{"price", "/api/format?venue=binance&symbol=BTCUSDT&kind=price&value=27123.456", http.StatusOK, `{"result":"27123.46"}`},
		{"currency", "/api/format?venue=binance&currency=USDT&kind=currency&value=1.239", http.StatusOK, `{"result":"1.24"}`},
		{"collapsed", "/api/format?venue=binance&symbol=BTC/USDT&kind=amount&value=0.000001", http.StatusBadRequest, "minimum resolution"},
		{"bad value", "/api/format?venue=binance&symbol=BTC/USDT&kind=price&value=abc", http.StatusBadRequest, "error"},
		{"unknown market", "/api/format?venue=binance&symbol=ETH/USDT&value=1", http.StatusNotFound, "unknown market"},
		{"unknown kind", "/api/format?venue=binance&symbol=BTC/USDT&kind=size&value=1", http.StatusBadRequest, "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestServer_Price(t *testing.T) {
	s, l := newTestServer(t)

	rec := get(t, s.Handler(), "/api/price?venue=binance&symbol=BTC/USDT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol":"BTC/USDT","price":"64000.13"}`, rec.Body.String())
	assert.Equal(t, uint64(1), l.Stats().Admitted)

	rec = get(t, s.Handler(), "/api/price?venue=binance&symbol=ETH/USDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Index(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/admissions/stream")

	rec = get(t, s.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AdmissionStream(t *testing.T) {
	b := events.NewAdmissionBroadcaster(8)
	s, _ := newTestServer(t, WithBroadcaster(b))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/admissions/stream?venue=binance", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	b.Publish(events.Admission{Venue: "bybit", Cost: 99})
	b.Publish(events.Admission{Venue: "binance", Cost: 7})

	reader := bufio.NewReader(resp.Body)
	var data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}

	var ev events.Admission
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "binance", ev.Venue)
	assert.Equal(t, 7.0, ev.Cost)
}

func TestServer_StreamUnavailable(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/admissions/stream")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientLimiter(t *testing.T) {
	cl := NewClientLimiter(1, 2)
	s, _ := newTestServer(t, WithClientLimiter(cl))
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/api/limiters").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/limiters").Code)

	rec := get(t, h, "/api/limiters")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// another client has its own bucket
	other := httptest.NewRequest(http.MethodGet, "/api/limiters", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	cl.Cleanup(time.Now().Add(time.Hour))
	cl.mu.Lock()
	assert.Empty(t, cl.entries)
	cl.mu.Unlock()
}

func TestServer_StartWithAutoTLSNeedsDomains(t *testing.T) {
	s, _ := newTestServer(t)
	err := s.StartWithAutoTLS(context.Background(), nil, "")
	assert.Error(t, err)
}
