package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/venuekit/pkg/throttle"
)

func TestAdmissionBroadcaster_PublishSubscribe(t *testing.T) {
	b := NewAdmissionBroadcaster(4)
	ch := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	id := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.ObserverFor("binance").OnAdmission(throttle.Admission{
		TicketID:   id,
		Cost:       20,
		Waited:     1500 * time.Millisecond,
		AdmittedAt: at,
		Algorithm:  throttle.RollingWindow,
	})

	select {
	case ev := <-ch:
		assert.Equal(t, "binance", ev.Venue)
		assert.Equal(t, id.String(), ev.TicketID)
		assert.Equal(t, 20.0, ev.Cost)
		assert.Equal(t, int64(1500), ev.WaitedMS)
		assert.Equal(t, "rolling_window", ev.Algorithm)
		assert.Equal(t, at, ev.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	b.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())

	// double unsubscribe is a no-op
	b.Unsubscribe(ch)
}

func TestAdmissionBroadcaster_DropsSlowConsumer(t *testing.T) {
	b := NewAdmissionBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(Admission{Venue: "a"})
	b.Publish(Admission{Venue: "b"})

	ev := <-ch
	assert.Equal(t, "a", ev.Venue)
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestObservers(t *testing.T) {
	var got []float64
	rec := throttle.ObserverFunc(func(a throttle.Admission) { got = append(got, a.Cost) })

	o := Observers(rec, nil, rec)
	o.OnAdmission(throttle.Admission{Cost: 3})
	require.Len(t, got, 2)
	assert.Equal(t, []float64{3, 3}, got)
}

func TestFromThrottle(t *testing.T) {
	a := FromThrottle("bybit", throttle.Admission{Cost: 5, Tag: "markets", Waited: 1500 * time.Millisecond, Algorithm: throttle.RollingWindow})
	assert.Equal(t, "bybit", a.Venue)
	assert.Equal(t, "markets", a.Endpoint)
	assert.Equal(t, int64(1500), a.WaitedMS)
	assert.Equal(t, "rolling_window", a.Algorithm)
}
