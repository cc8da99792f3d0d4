package events

import (
	"sync"
	"time"

	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

// Admission is a domain event emitted when a venue limiter releases a ticket.
type Admission struct {
	Timestamp time.Time `json:"ts"`
	Venue     string    `json:"venue"`
	Endpoint  string    `json:"endpoint,omitempty"`
	TicketID  string    `json:"ticket_id"`
	Cost      float64   `json:"cost"`
	WaitedMS  int64     `json:"waited_ms"`
	Algorithm string    `json:"algorithm"`
}

// AdmissionBroadcaster fans out admissions to all subscribers via buffered channels.
type AdmissionBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Admission]struct{}
	buffer int
}

// NewAdmissionBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewAdmissionBroadcaster(buffer int) *AdmissionBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &AdmissionBroadcaster{
		subs:   make(map[chan Admission]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
// It runs on the limiter's admission loop and must never block.
func (b *AdmissionBroadcaster) Publish(a Admission) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- a:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives admissions until Unsubscribe is called.
func (b *AdmissionBroadcaster) Subscribe() chan Admission {
	ch := make(chan Admission, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *AdmissionBroadcaster) Unsubscribe(ch chan Admission) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *AdmissionBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ObserverFor returns a limiter observer that publishes the venue's admissions.
func (b *AdmissionBroadcaster) ObserverFor(venue string) throttle.Observer {
	return throttle.ObserverFunc(func(a throttle.Admission) {
		b.Publish(FromThrottle(venue, a))
	})
}

// FromThrottle converts a limiter admission into an event.
func FromThrottle(venue string, a throttle.Admission) Admission {
	return Admission{
		Timestamp: a.AdmittedAt,
		Venue:     venue,
		Endpoint:  a.Tag,
		TicketID:  a.TicketID.String(),
		Cost:      a.Cost,
		WaitedMS:  a.Waited.Milliseconds(),
		Algorithm: a.Algorithm.String(),
	}
}

// Observers combines several observers into one.
func Observers(obs ...throttle.Observer) throttle.Observer {
	return throttle.ObserverFunc(func(a throttle.Admission) {
		for _, o := range obs {
			if o != nil {
				o.OnAdmission(a)
			}
		}
	})
}
