// Package markets caches loaded venue markets in a WAL so a restart can
// come up without reaching the venue.
package markets

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/venuekit/internal/domain"
)

const (
	defaultMarketsDir  = "./wal/markets"
	marketSegmentLimit = 100
	marketMaxSegments  = 20
	marketKeyPrefix    = "markets_"
)

// Snapshot is the set of markets one venue reported at a point in time.
type Snapshot struct {
	Venue   string          `json:"venue"`
	SavedAt time.Time       `json:"saved_at"`
	Markets []domain.Market `json:"markets"`
}

// WALStore persists market snapshots in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed market store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultMarketsDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "markets_",
		SegmentThreshold: marketSegmentLimit,
		MaxSegments:      marketMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init markets WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends a snapshot of the venue's markets.
func (s *WALStore) Save(venue string, markets []domain.Market, at time.Time) error {
	if s == nil || s.wal == nil {
		return errors.New("markets store is not initialized")
	}
	if venue == "" {
		return fmt.Errorf("markets snapshot venue is required")
	}

	payload, err := json.Marshal(Snapshot{Venue: venue, SavedAt: at.UTC(), Markets: markets})
	if err != nil {
		return errors.Wrap(err, "marshal markets snapshot")
	}

	key := marketKeyPrefix + venue

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Latest returns the newest snapshot saved for venue. ok is false when the
// WAL holds none.
func (s *WALStore) Latest(venue string) (snapshot Snapshot, ok bool, err error) {
	if s == nil || s.wal == nil {
		return Snapshot{}, false, errors.New("markets store is not initialized")
	}

	key := marketKeyPrefix + venue

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest []byte
	for msg := range s.wal.Iterator() {
		if msg.Key == key {
			latest = msg.Value
		}
	}
	if latest == nil {
		return Snapshot{}, false, nil
	}

	if err := json.Unmarshal(latest, &snapshot); err != nil {
		return Snapshot{}, false, errors.Wrapf(err, "decode %s markets snapshot", venue)
	}
	return snapshot, true, nil
}

// Venues returns the venues with at least one stored snapshot.
func (s *WALStore) Venues() []string {
	if s == nil || s.wal == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	var venues []string
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, marketKeyPrefix) {
			continue
		}
		v := strings.TrimPrefix(msg.Key, marketKeyPrefix)
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			venues = append(venues, v)
		}
	}
	return venues
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("markets store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
