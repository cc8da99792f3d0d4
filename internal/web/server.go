package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/venuekit/internal/domain"
	"github.com/vadiminshakov/venuekit/internal/events"
	"github.com/vadiminshakov/venuekit/internal/stats"
	"github.com/vadiminshakov/venuekit/internal/venue"
	"github.com/vadiminshakov/venuekit/pkg/decimal"
	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

const heartbeatInterval = 30 * time.Second

// Venue is one connection exposed on the status surface.
type Venue struct {
	Exchange *venue.Exchange
	Limiter  *throttle.Limiter
	Pricer   venue.Pricer
}

// LimiterStatus is the JSON view of one venue's limiter.
type LimiterStatus struct {
	Venue    string          `json:"venue"`
	Enabled  bool            `json:"enabled"`
	Limiter  *throttle.Stats `json:"limiter,omitempty"`
	Counters *stats.Counters `json:"counters,omitempty"`
	Markets  int             `json:"markets"`
}

// Server exposes limiter state, market metadata, the precision helpers and
// an SSE stream of admissions.
type Server struct {
	Addr string

	venues      map[string]Venue
	broadcaster *events.AdmissionBroadcaster
	counters    *stats.MemorySink
	clients     *ClientLimiter
	logger      *zap.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBroadcaster enables the admission stream.
func WithBroadcaster(b *events.AdmissionBroadcaster) ServerOption {
	return func(s *Server) { s.broadcaster = b }
}

// WithCounters adds aggregated counters to the limiter view.
func WithCounters(c *stats.MemorySink) ServerOption {
	return func(s *Server) { s.counters = c }
}

// WithClientLimiter limits requests per client address.
func WithClientLimiter(l *ClientLimiter) ServerOption {
	return func(s *Server) { s.clients = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new web server instance.
func NewServer(addr string, venues []Venue, opts ...ServerOption) *Server {
	s := &Server{
		Addr:   addr,
		venues: make(map[string]Venue, len(venues)),
		logger: zap.NewNop(),
	}
	for _, v := range venues {
		s.venues[v.Exchange.ID()] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, wrapped in the client limiter if one is set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/limiters", s.handleLimiters)
	mux.HandleFunc("GET /api/markets", s.handleMarkets)
	mux.HandleFunc("GET /api/format", s.handleFormat)
	mux.HandleFunc("GET /api/price", s.handlePrice)
	mux.HandleFunc("GET /api/admissions/stream", s.handleAdmissionStream)

	if s.clients != nil {
		return s.clients.Middleware(mux)
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.clients != nil {
		s.clients.StartJanitor(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves HTTPS with certificates issued via ACME. A plain
// HTTP server on :80 answers the HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	if s.clients != nil {
		s.clients.StartJanitor(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server", zap.Error(err))
		}
	}()

	s.logger.Info("status server listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) sortedIDs() []string {
	ids := make([]string, 0, len(s.venues))
	for id := range s.venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleLimiters(w http.ResponseWriter, r *http.Request) {
	out := make([]LimiterStatus, 0, len(s.venues))
	for _, id := range s.sortedIDs() {
		v := s.venues[id]
		status := LimiterStatus{
			Venue:   id,
			Enabled: v.Exchange.RateLimitEnabled(),
			Markets: len(v.Exchange.Markets()),
		}
		if v.Limiter != nil {
			st := v.Limiter.Stats()
			status.Limiter = &st
		}
		if s.counters != nil {
			c := s.counters.Venue(id)
			status.Counters = &c
		}
		out = append(out, status)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) venue(w http.ResponseWriter, r *http.Request) (Venue, bool) {
	id := r.URL.Query().Get("venue")
	v, ok := s.venues[id]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown venue %q", id))
		return Venue{}, false
	}
	return v, true
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	v, ok := s.venue(w, r)
	if !ok {
		return
	}
	markets := v.Exchange.Markets()
	if markets == nil {
		markets = []domain.Market{}
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	v, ok := s.venue(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	symbol := q.Get("symbol")
	value := decimal.Text(q.Get("value"))

	var (
		result string
		err    error
	)
	switch kind := q.Get("kind"); kind {
	case "amount", "":
		result, err = v.Exchange.AmountToPrecision(symbol, value)
	case "price":
		result, err = v.Exchange.PriceToPrecision(symbol, value)
	case "cost":
		result, err = v.Exchange.CostToPrecision(symbol, value)
	case "fee":
		result, err = v.Exchange.FeeToPrecision(symbol, value)
	case "currency":
		result, err = v.Exchange.CurrencyToPrecision(q.Get("currency"), value, q.Get("network"))
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
		return
	}

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, venue.ErrUnknownMarket) || errors.Is(err, venue.ErrUnknownCurrency) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	v, ok := s.venue(w, r)
	if !ok {
		return
	}
	if v.Pricer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "prices not available")
		return
	}

	symbol := r.URL.Query().Get("symbol")
	price, err := v.Exchange.Price(r.Context(), v.Pricer, symbol)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, venue.ErrUnknownMarket):
			status = http.StatusNotFound
		case errors.Is(err, throttle.ErrQueueOverflow), errors.Is(err, throttle.ErrInvalidCost):
			status = http.StatusTooManyRequests
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "price": price})
}

func (s *Server) handleAdmissionStream(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "admission stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	venueFilter := r.URL.Query().Get("venue")
	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	// comment heartbeat keeps proxies from closing the connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			if venueFilter != "" && ev.Venue != venueFilter {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("admission stream encode", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: admission\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>venuekit</title>
  <style>
    body { font-family:'Space Mono',monospace; margin:2rem; background:#fff; color:#111; }
    table { border-collapse:collapse; }
    td, th { border:1px solid #111; padding:.3rem .6rem; text-align:right; }
    #log { height:20rem; overflow:auto; background:#f6f6f6; padding:.5rem; font-size:.8rem; }
  </style>
</head>
<body>
  <h1>venuekit</h1>
  <table id="limiters"><thead><tr>
    <th>venue</th><th>algorithm</th><th>state</th><th>queue</th><th>tokens</th><th>window</th><th>admitted</th><th>rejected</th>
  </tr></thead><tbody></tbody></table>
  <h2>admissions</h2>
  <div id="log"></div>
  <script>
    async function refresh() {
      const res = await fetch('/api/limiters');
      const rows = await res.json();
      const body = document.querySelector('#limiters tbody');
      body.innerHTML = '';
      for (const r of rows) {
        const l = r.limiter || {};
        const tr = document.createElement('tr');
        for (const v of [r.venue, l.algorithm, l.state, l.queue_depth, (l.tokens||0).toFixed(3),
                         l.window_weight, l.admitted, l.rejected]) {
          const td = document.createElement('td');
          td.textContent = v === undefined ? '-' : v;
          tr.appendChild(td);
        }
        body.appendChild(tr);
      }
    }
    refresh();
    setInterval(refresh, 2000);

    const log = document.getElementById('log');
    const es = new EventSource('/api/admissions/stream');
    es.addEventListener('admission', (e) => {
      const a = JSON.parse(e.data);
      const line = document.createElement('div');
      line.textContent = a.ts + ' ' + a.venue + ' cost=' + a.cost + ' waited=' + a.waited_ms + 'ms';
      log.prepend(line);
      while (log.childNodes.length > 200) log.removeChild(log.lastChild);
    });
  </script>
</body>
</html>
`
