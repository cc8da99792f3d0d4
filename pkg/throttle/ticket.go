package throttle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ticketState int

const (
	ticketPending ticketState = iota
	ticketAdmitted
	ticketCancelled
)

// Ticket is a queued request for admission.
type Ticket struct {
	ID   uuid.UUID
	Cost float64
	// Tag names what the ticket pays for, usually the endpoint.
	Tag string

	limiter    *Limiter
	enqueuedAt time.Time
	done       chan struct{}

	// guarded by limiter.mu
	state ticketState
	err   error
}

// Done is closed once the ticket is admitted or abandoned.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns nil for an admitted ticket and the reason otherwise.
// It is only meaningful after Done is closed.
func (t *Ticket) Err() error {
	t.limiter.mu.Lock()
	defer t.limiter.mu.Unlock()
	return t.err
}

// Wait blocks until the ticket is admitted. When ctx ends first the ticket is
// cancelled and ctx.Err() is returned.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		if t.Cancel() {
			return ctx.Err()
		}
		// admitted while ctx was ending; the budget is already spent
		<-t.done
		return t.Err()
	}
}

// Cancel removes a pending ticket from the queue. Tickets behind it keep
// their order. It reports false if the ticket was already admitted or
// abandoned.
func (t *Ticket) Cancel() bool {
	return t.limiter.cancel(t, ErrCancelled)
}

type tagKey struct{}

// ContextWithTag attaches a tag that Throttle copies onto its ticket and
// the resulting Admission.
func ContextWithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey{}, tag)
}

// TagFrom returns the tag set by ContextWithTag, or "".
func TagFrom(ctx context.Context) string {
	tag, _ := ctx.Value(tagKey{}).(string)
	return tag
}
