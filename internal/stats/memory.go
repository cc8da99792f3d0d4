package stats

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps counters in process. It never expires anything.
type MemorySink struct {
	mu      sync.Mutex
	total   Counters
	byVenue map[string]Counters
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{byVenue: make(map[string]Counters)}
}

// Record implements Sink.
func (s *MemorySink) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	c := s.byVenue[ev.Venue]
	c.add(ev)
	s.byVenue[ev.Venue] = c
	return nil
}

// Total returns counters across all venues.
func (s *MemorySink) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Venue returns the counters of one venue.
func (s *MemorySink) Venue(venue string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byVenue[venue]
}

// Venues returns the venues seen so far, sorted.
func (s *MemorySink) Venues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.byVenue))
	for v := range s.byVenue {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
