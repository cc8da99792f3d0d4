package stats

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

// Recorder moves events off the limiter's admission loop onto a sink.
// Events that do not fit the buffer are dropped and counted.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	events  chan Event
	dropped atomic.Uint64
}

// NewRecorder creates a Recorder feeding sink.
func NewRecorder(sink Sink, buffer int, logger *zap.Logger) *Recorder {
	if buffer < 1 {
		buffer = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		sink:   sink,
		logger: logger,
		events: make(chan Event, buffer),
	}
}

// Add queues ev without blocking.
func (r *Recorder) Add(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded for lack of buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// ObserverFor returns a limiter observer recording the venue's admissions.
func (r *Recorder) ObserverFor(venue string) throttle.Observer {
	return throttle.ObserverFunc(func(a throttle.Admission) {
		r.Add(Event{
			Venue:    venue,
			Endpoint: a.Tag,
			Kind:     KindAdmitted,
			Cost:     a.Cost,
			Waited:   a.Waited,
			At:       a.AdmittedAt,
		})
	})
}

// Run drains queued events into the sink until ctx ends, then flushes
// what is already buffered.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.events:
			r.record(ctx, ev)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.record(context.Background(), ev)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev Event) {
	if err := r.sink.Record(ctx, ev); err != nil {
		r.logger.Warn("failed to record limiter stats", zap.String("venue", ev.Venue), zap.Error(err))
	}
}
