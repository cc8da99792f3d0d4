// Package stats records limiter admissions and rejections per venue.
// Recording is best-effort: a failing sink never delays a venue call.
package stats

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Kind classifies a recorded event.
type Kind string

const (
	// KindAdmitted is a ticket released by the limiter.
	KindAdmitted Kind = "admitted"
	// KindRejected is a call refused before admission.
	KindRejected Kind = "rejected"
)

// Event is one limiter decision.
type Event struct {
	Venue    string
	Endpoint string
	Kind     Kind
	Cost     float64
	Waited   time.Duration
	At       time.Time
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Counters aggregates events.
type Counters struct {
	Admitted int64   `json:"admitted"`
	Rejected int64   `json:"rejected"`
	Weight   float64 `json:"weight"`
}

func (c *Counters) add(ev Event) {
	switch ev.Kind {
	case KindAdmitted:
		c.Admitted++
		c.Weight += ev.Cost
	case KindRejected:
		c.Rejected++
	}
}

type multiSink []Sink

// Multi records every event in all sinks. A failing sink does not stop the others.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Record(ctx context.Context, ev Event) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Record(ctx, ev))
	}
	return err
}
