// Package throttle paces outbound venue calls with a FIFO admission queue
// backed by a leaky bucket or a rolling window budget.
package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrQueueOverflow is returned when the admission queue is full.
	ErrQueueOverflow = errors.New("rate limiter queue is full")
	// ErrInvalidCost is returned for a negative cost, or a cost above the
	// rolling window budget which could never be admitted.
	ErrInvalidCost = errors.New("invalid request cost")
	// ErrCancelled is reported by a ticket that was abandoned before admission.
	ErrCancelled = errors.New("ticket cancelled")
	// ErrClosed is returned once the limiter has been closed.
	ErrClosed = errors.New("rate limiter closed")
)

// State is the lifecycle state of the admission loop.
type State int

const (
	// Idle means no loop is running and the queue is empty.
	Idle State = iota
	// Running means the loop is draining the queue.
	Running
)

// String returns the string representation.
func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Admission describes a released ticket.
type Admission struct {
	TicketID   uuid.UUID
	Cost       float64
	Tag        string
	Waited     time.Duration
	AdmittedAt time.Time
	Algorithm  Algorithm
}

// Observer receives admissions after the ticket is released.
type Observer interface {
	OnAdmission(Admission)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Admission)

// OnAdmission calls f(a).
func (f ObserverFunc) OnAdmission(a Admission) { f(a) }

// Stats is a point-in-time view of a Limiter.
type Stats struct {
	Algorithm    Algorithm `json:"algorithm"`
	State        State     `json:"state"`
	QueueDepth   int       `json:"queue_depth"`
	Tokens       float64   `json:"tokens"`
	WindowWeight float64   `json:"window_weight"`
	Admitted     uint64    `json:"admitted"`
	Cancelled    uint64    `json:"cancelled"`
	Rejected     uint64    `json:"rejected"`
}

type windowEntry struct {
	at   time.Time
	cost float64
}

// Limiter admits tickets strictly in submission order. Producers only touch
// the queue; the admission loop is the only writer of the budget.
type Limiter struct {
	refillRate    float64
	delay         time.Duration
	capacity      float64
	defaultCost   float64
	maxQueueDepth int
	algorithm     Algorithm
	window        time.Duration
	maxWeight     float64

	logger   *zap.Logger
	observer Observer
	clock    Clock

	mu         sync.Mutex
	queue      []*Ticket
	running    bool
	closed     bool
	closing    chan struct{}
	tokens     float64
	tokensSet  bool
	lastRefill time.Time
	admitted   []windowEntry
	weight     float64

	admittedCount  atomic.Uint64
	cancelledCount atomic.Uint64
	rejectedCount  atomic.Uint64
}

// New creates a Limiter with default values and optional overrides.
func New(opts ...Option) (*Limiter, error) {
	l := &Limiter{
		refillRate:    defaultRefillRate,
		delay:         defaultDelay,
		capacity:      defaultCapacity,
		defaultCost:   defaultCost,
		maxQueueDepth: defaultMaxQueueDepth,
		algorithm:     LeakyBucket,
		window:        defaultWindow,
		logger:        zap.NewNop(),
		clock:         wallClock{},
		closing:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if !l.algorithm.IsValid() {
		return nil, errors.Errorf("unknown algorithm %d", l.algorithm)
	}
	if l.refillRate <= 0 {
		return nil, errors.Errorf("refill rate must be positive, got %v", l.refillRate)
	}
	if l.capacity <= 0 {
		return nil, errors.Errorf("capacity must be positive, got %v", l.capacity)
	}
	if l.maxQueueDepth <= 0 {
		return nil, errors.Errorf("max queue depth must be positive, got %d", l.maxQueueDepth)
	}
	if l.delay <= 0 {
		return nil, errors.Errorf("delay must be positive, got %s", l.delay)
	}
	if l.window <= 0 {
		return nil, errors.Errorf("window must be positive, got %s", l.window)
	}
	if l.defaultCost < 0 {
		return nil, errors.Errorf("default cost must not be negative, got %v", l.defaultCost)
	}
	if l.maxWeight == 0 {
		l.maxWeight = float64(l.window.Milliseconds()) * l.refillRate
	}
	if l.maxWeight <= 0 {
		return nil, errors.Errorf("max weight must be positive, got %v", l.maxWeight)
	}
	if !l.tokensSet {
		l.tokens = l.capacity
	}
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = l.clock.Now()

	return l, nil
}

// Enqueue appends a ticket of the given cost to the queue and starts the
// admission loop if it is idle. A leaky bucket ticket costing more than the
// capacity waits for a full bucket and leaves the balance negative.
func (l *Limiter) Enqueue(cost float64) (*Ticket, error) {
	return l.enqueue(cost, "")
}

func (l *Limiter) enqueue(cost float64, tag string) (*Ticket, error) {
	if cost < 0 {
		l.rejectedCount.Add(1)
		return nil, errors.Wrapf(ErrInvalidCost, "negative cost %v", cost)
	}
	if l.algorithm == RollingWindow && cost > l.maxWeight {
		l.rejectedCount.Add(1)
		return nil, errors.Wrapf(ErrInvalidCost, "cost %v above window budget %v", cost, l.maxWeight)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if len(l.queue) >= l.maxQueueDepth {
		l.rejectedCount.Add(1)
		l.logger.Warn("rate limiter queue overflow",
			zap.Int("depth", len(l.queue)),
			zap.Int("max_depth", l.maxQueueDepth),
			zap.Float64("cost", cost))
		return nil, errors.Wrapf(ErrQueueOverflow, "%d tickets pending", len(l.queue))
	}

	t := &Ticket{
		ID:         uuid.New(),
		Cost:       cost,
		Tag:        tag,
		limiter:    l,
		enqueuedAt: l.clock.Now(),
		done:       make(chan struct{}),
	}
	l.queue = append(l.queue, t)

	if !l.running {
		l.running = true
		go l.loop()
	}

	return t, nil
}

// Throttle enqueues a ticket tagged from ctx and waits for its admission.
func (l *Limiter) Throttle(ctx context.Context, cost float64) error {
	t, err := l.enqueue(cost, TagFrom(ctx))
	if err != nil {
		return err
	}
	return t.Wait(ctx)
}

// Wait is Throttle with the default cost.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.Throttle(ctx, l.defaultCost)
}

// DefaultCost returns the cost Wait uses.
func (l *Limiter) DefaultCost() float64 {
	return l.defaultCost
}

// Stats returns a snapshot of the limiter.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := Idle
	if l.running {
		state = Running
	}
	return Stats{
		Algorithm:    l.algorithm,
		State:        state,
		QueueDepth:   len(l.queue),
		Tokens:       l.tokens,
		WindowWeight: l.weight,
		Admitted:     l.admittedCount.Load(),
		Cancelled:    l.cancelledCount.Load(),
		Rejected:     l.rejectedCount.Load(),
	}
}

// Close abandons every pending ticket with ErrClosed and rejects new ones.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	pending := l.queue
	l.queue = nil
	for _, t := range pending {
		t.state = ticketCancelled
		t.err = ErrClosed
		close(t.done)
	}
	l.mu.Unlock()

	close(l.closing)
	l.logger.Debug("rate limiter closed", zap.Int("abandoned", len(pending)))
}

func (l *Limiter) cancel(t *Ticket, reason error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.state != ticketPending {
		return false
	}
	for i, q := range l.queue {
		if q == t {
			l.queue = append(l.queue[:i:i], l.queue[i+1:]...)
			break
		}
	}
	t.state = ticketCancelled
	t.err = reason
	close(t.done)
	l.cancelledCount.Add(1)
	return true
}

func (l *Limiter) loop() {
	l.logger.Debug("admission loop started", zap.Stringer("algorithm", l.algorithm))

	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.closed {
			l.running = false
			l.mu.Unlock()
			l.logger.Debug("admission loop stopped")
			return
		}

		head := l.queue[0]
		now := l.clock.Now()
		wait := l.admit(head, now)
		if wait == 0 {
			l.queue = l.queue[1:]
			head.state = ticketAdmitted
			close(head.done)
		}
		l.mu.Unlock()

		if wait == 0 {
			l.admittedCount.Add(1)
			if l.observer != nil {
				l.observer.OnAdmission(Admission{
					TicketID:   head.ID,
					Cost:       head.Cost,
					Tag:        head.Tag,
					Waited:     now.Sub(head.enqueuedAt),
					AdmittedAt: now,
					Algorithm:  l.algorithm,
				})
			}
			continue
		}

		select {
		case <-l.clock.After(wait):
		case <-l.closing:
		}
	}
}

// admit spends budget for t and returns 0, or returns how long to sleep
// before trying again. Called with mu held.
func (l *Limiter) admit(t *Ticket, now time.Time) time.Duration {
	if l.algorithm == RollingWindow {
		return l.admitWindow(t, now)
	}
	return l.admitBucket(t, now)
}

func (l *Limiter) admitBucket(t *Ticket, now time.Time) time.Duration {
	// idle time counts toward the refill
	elapsed := now.Sub(l.lastRefill)
	if elapsed > 0 {
		l.tokens += l.refillRate * float64(elapsed) / float64(time.Millisecond)
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	// oversized costs go through once the bucket is full, then repay the debt
	if l.tokens >= t.Cost || l.tokens >= l.capacity {
		l.tokens -= t.Cost
		return 0
	}
	return l.delay
}

func (l *Limiter) admitWindow(t *Ticket, now time.Time) time.Duration {
	cutoff := now.Add(-l.window)
	drop := 0
	for drop < len(l.admitted) && !l.admitted[drop].at.After(cutoff) {
		l.weight -= l.admitted[drop].cost
		drop++
	}
	if drop > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[drop:]...)
	}
	if len(l.admitted) == 0 {
		l.weight = 0
	}

	if l.weight+t.Cost <= l.maxWeight {
		l.admitted = append(l.admitted, windowEntry{at: now, cost: t.Cost})
		l.weight += t.Cost
		return 0
	}

	wait := l.admitted[0].at.Add(l.window).Sub(now)
	if wait < l.delay {
		wait = l.delay
	}
	return wait
}
