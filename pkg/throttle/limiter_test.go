package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testClock is a manual clock. In auto mode every After call advances time
// by the requested duration and fires immediately.
type testClock struct {
	mu      sync.Mutex
	now     time.Time
	auto    bool
	waiters []testWaiter
}

type testWaiter struct {
	at time.Time
	ch chan time.Time
}

func newTestClock(auto bool) *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), auto: auto}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if c.auto {
		c.now = c.now.Add(d)
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, testWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

type recorder struct {
	mu   sync.Mutex
	seen []Admission
}

func (r *recorder) OnAdmission(a Admission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, a)
}

func (r *recorder) admissions() []Admission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Admission(nil), r.seen...)
}

func waitAll(t *testing.T, tickets []*Ticket) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, tk := range tickets {
		require.NoError(t, tk.Wait(ctx))
	}
}

func TestLimiter_FIFO(t *testing.T) {
	rec := &recorder{}
	l, err := New(
		WithClock(newTestClock(true)),
		WithCapacity(5),
		WithRefillRate(0.1),
		WithObserver(rec),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)

	var tickets []*Ticket
	var want []uuid.UUID
	for i := 0; i < 30; i++ {
		cost := float64(i%3 + 1)
		tk, err := l.Enqueue(cost)
		require.NoError(t, err)
		tickets = append(tickets, tk)
		want = append(want, tk.ID)
	}
	waitAll(t, tickets)

	var got []uuid.UUID
	for _, a := range rec.admissions() {
		got = append(got, a.TicketID)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(30), l.Stats().Admitted)
}

func TestLimiter_WithinCapacityAdmittedAtOnce(t *testing.T) {
	clock := newTestClock(true)
	start := clock.Now()
	rec := &recorder{}
	l, err := New(WithClock(clock), WithCapacity(10), WithRefillRate(0.001), WithObserver(rec))
	require.NoError(t, err)

	var tickets []*Ticket
	for i := 0; i < 5; i++ {
		tk, err := l.Enqueue(2)
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	waitAll(t, tickets)

	for _, a := range rec.admissions() {
		assert.Equal(t, start, a.AdmittedAt)
	}
}

func TestLimiter_NeverAdmitsEarly(t *testing.T) {
	clock := newTestClock(true)
	start := clock.Now()
	rec := &recorder{}
	// one token per 100ms
	l, err := New(WithClock(clock), WithCapacity(1), WithRefillRate(0.01), WithDelay(time.Millisecond), WithObserver(rec))
	require.NoError(t, err)

	var tickets []*Ticket
	for i := 0; i < 5; i++ {
		tk, err := l.Enqueue(1)
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	waitAll(t, tickets)

	admissions := rec.admissions()
	require.Len(t, admissions, 5)
	for i, a := range admissions {
		assert.GreaterOrEqual(t, a.AdmittedAt.Sub(start), time.Duration(i)*100*time.Millisecond, "ticket %d", i)
		if i > 0 {
			assert.False(t, a.AdmittedAt.Before(admissions[i-1].AdmittedAt))
		}
	}
}

func TestLimiter_HeadOfLineBlocking(t *testing.T) {
	clock := newTestClock(true)
	rec := &recorder{}
	l, err := New(WithClock(clock), WithCapacity(5), WithTokens(1), WithRefillRate(0.01), WithObserver(rec))
	require.NoError(t, err)

	big, err := l.Enqueue(5)
	require.NoError(t, err)
	small, err := l.Enqueue(1)
	require.NoError(t, err)
	waitAll(t, []*Ticket{big, small})

	admissions := rec.admissions()
	require.Len(t, admissions, 2)
	assert.Equal(t, big.ID, admissions[0].TicketID)
	assert.Equal(t, small.ID, admissions[1].TicketID)
}

func TestLimiter_QueueOverflow(t *testing.T) {
	l, err := New(WithClock(newTestClock(false)), WithTokens(0), WithMaxQueueDepth(3))
	require.NoError(t, err)
	defer l.Close()

	var tickets []*Ticket
	for i := 0; i < 3; i++ {
		tk, err := l.Enqueue(1)
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}

	_, err = l.Enqueue(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueOverflow)

	stats := l.Stats()
	assert.Equal(t, 3, stats.QueueDepth)
	assert.Equal(t, uint64(1), stats.Rejected)
	for _, tk := range tickets {
		select {
		case <-tk.Done():
			t.Fatal("queued ticket released after overflow")
		default:
		}
	}
}

func TestLimiter_InvalidCost(t *testing.T) {
	l, err := New(WithCapacity(2))
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Enqueue(-1)
	assert.ErrorIs(t, err, ErrInvalidCost)

	w, err := New(WithAlgorithm(RollingWindow), WithMaxWeight(10))
	require.NoError(t, err)
	_, err = w.Enqueue(11)
	assert.ErrorIs(t, err, ErrInvalidCost)
}

func TestLimiter_CostAboveCapacity(t *testing.T) {
	clock := newTestClock(true)
	start := clock.Now()
	rec := &recorder{}
	// one token per 100ms, bucket holds one
	l, err := New(WithClock(clock), WithCapacity(1), WithTokens(0), WithRefillRate(0.01), WithDelay(time.Millisecond), WithObserver(rec))
	require.NoError(t, err)

	heavy, err := l.Enqueue(20)
	require.NoError(t, err)
	next, err := l.Enqueue(1)
	require.NoError(t, err)
	last, err := l.Enqueue(1)
	require.NoError(t, err)
	waitAll(t, []*Ticket{heavy, next, last})

	admissions := rec.admissions()
	require.Len(t, admissions, 3)
	assert.Equal(t, heavy.ID, admissions[0].TicketID)
	assert.Equal(t, next.ID, admissions[1].TicketID)
	assert.Equal(t, last.ID, admissions[2].TicketID)

	// waits for a full bucket
	assert.GreaterOrEqual(t, admissions[0].AdmittedAt.Sub(start), 99*time.Millisecond)
	// the debt of 19 tokens is repaid before the next ticket
	assert.GreaterOrEqual(t, admissions[1].AdmittedAt.Sub(admissions[0].AdmittedAt), 1990*time.Millisecond)
	assert.GreaterOrEqual(t, admissions[2].AdmittedAt.Sub(admissions[1].AdmittedAt), 99*time.Millisecond)
}

func TestLimiter_TagFromContext(t *testing.T) {
	rec := &recorder{}
	l, err := New(WithCapacity(5), WithObserver(rec))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Throttle(ContextWithTag(context.Background(), "exchangeInfo"), 2))
	require.NoError(t, l.Throttle(context.Background(), 1))

	require.Eventually(t, func() bool { return len(rec.admissions()) == 2 }, time.Second, time.Millisecond)
	admissions := rec.admissions()
	assert.Equal(t, "exchangeInfo", admissions[0].Tag)
	assert.Empty(t, admissions[1].Tag)
	assert.Equal(t, "", TagFrom(context.Background()))
}

func TestLimiter_Cancel(t *testing.T) {
	clock := newTestClock(false)
	rec := &recorder{}
	l, err := New(WithClock(clock), WithTokens(0), WithRefillRate(1), WithObserver(rec))
	require.NoError(t, err)

	a, err := l.Enqueue(1)
	require.NoError(t, err)
	b, err := l.Enqueue(1)
	require.NoError(t, err)
	c, err := l.Enqueue(1)
	require.NoError(t, err)

	assert.True(t, b.Cancel())
	assert.False(t, b.Cancel())
	<-b.Done()
	assert.ErrorIs(t, b.Err(), ErrCancelled)
	assert.Equal(t, 2, l.Stats().QueueDepth)

	require.Eventually(t, func() bool {
		clock.Advance(time.Millisecond)
		select {
		case <-c.Done():
			return true
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)

	assert.NoError(t, a.Err())
	assert.NoError(t, c.Err())
	assert.False(t, c.Cancel())

	admissions := rec.admissions()
	require.Len(t, admissions, 2)
	assert.Equal(t, a.ID, admissions[0].TicketID)
	assert.Equal(t, c.ID, admissions[1].TicketID)
	assert.Equal(t, uint64(1), l.Stats().Cancelled)
}

func TestLimiter_ThrottleContextTimeout(t *testing.T) {
	l, err := New(WithClock(newTestClock(false)), WithTokens(0))
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = l.Throttle(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stats := l.Stats()
	assert.Equal(t, 0, stats.QueueDepth)
	assert.Equal(t, uint64(1), stats.Cancelled)
}

func TestLimiter_RollingWindow(t *testing.T) {
	clock := newTestClock(true)
	start := clock.Now()
	rec := &recorder{}
	l, err := New(
		WithClock(clock),
		WithAlgorithm(RollingWindow),
		WithWindow(time.Second),
		WithMaxWeight(3),
		WithObserver(rec),
	)
	require.NoError(t, err)

	var tickets []*Ticket
	for i := 0; i < 10; i++ {
		tk, err := l.Enqueue(1)
		require.NoError(t, err)
		tickets = append(tickets, tk)
	}
	waitAll(t, tickets)

	admissions := rec.admissions()
	require.Len(t, admissions, 10)
	for i, a := range admissions {
		assert.Equal(t, tickets[i].ID, a.TicketID)

		var inWindow float64
		for _, b := range admissions {
			if b.AdmittedAt.After(a.AdmittedAt.Add(-time.Second)) && !b.AdmittedAt.After(a.AdmittedAt) {
				inWindow += b.Cost
			}
		}
		assert.LessOrEqual(t, inWindow, 3.0, "window ending at admission %d", i)
	}
	assert.GreaterOrEqual(t, admissions[3].AdmittedAt.Sub(start), time.Second)
}

func TestLimiter_IdleRefill(t *testing.T) {
	clock := newTestClock(false)
	l, err := New(WithClock(clock), WithCapacity(2), WithTokens(0), WithRefillRate(0.001))
	require.NoError(t, err)
	defer l.Close()

	clock.Advance(10 * time.Second)

	tk, err := l.Enqueue(2)
	require.NoError(t, err)
	select {
	case <-tk.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ticket not admitted after idle refill")
	}
	assert.NoError(t, tk.Err())
	assert.InDelta(t, 0, l.Stats().Tokens, 1e-9)
}

func TestLimiter_LoopStopsAndRestarts(t *testing.T) {
	l, err := New(WithClock(newTestClock(true)), WithCapacity(3), WithRefillRate(1))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))
	require.Eventually(t, func() bool { return l.Stats().State == Idle }, 5*time.Second, time.Millisecond)

	require.NoError(t, l.Throttle(ctx, 2))
	require.Eventually(t, func() bool { return l.Stats().State == Idle }, 5*time.Second, time.Millisecond)
	assert.Equal(t, uint64(2), l.Stats().Admitted)
}

func TestLimiter_ConcurrentProducers(t *testing.T) {
	l, err := New(WithClock(newTestClock(true)), WithCapacity(10), WithRefillRate(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Wait(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, uint64(50), l.Stats().Admitted)
}

func TestLimiter_Close(t *testing.T) {
	l, err := New(WithClock(newTestClock(false)), WithTokens(0))
	require.NoError(t, err)

	tk, err := l.Enqueue(1)
	require.NoError(t, err)

	l.Close()
	<-tk.Done()
	assert.ErrorIs(t, tk.Err(), ErrClosed)

	_, err = l.Enqueue(1)
	assert.ErrorIs(t, err, ErrClosed)
	l.Close()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero capacity", WithCapacity(0)},
		{"negative refill", WithRefillRate(-1)},
		{"zero queue", WithMaxQueueDepth(0)},
		{"zero delay", WithDelay(0)},
		{"zero window", WithWindow(0)},
		{"negative cost", WithDefaultCost(-1)},
		{"unknown algorithm", WithAlgorithm(Algorithm(9))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}

	l, err := New(WithRateLimit(50*time.Millisecond), WithAlgorithm(RollingWindow), WithWindow(time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, l.maxWeight, 1e-9)
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("rolling_window")
	require.NoError(t, err)
	assert.Equal(t, RollingWindow, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, LeakyBucket, a)

	_, err = ParseAlgorithm("fixed")
	assert.Error(t, err)
}
