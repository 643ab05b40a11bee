// Package store holds the active usage dataset for the process.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

// Snapshot is an immutable ingested dataset. Callers must not modify Records.
type Snapshot struct {
	ID         string
	IngestedAt time.Time
	Records    []models.UsageRecord
}

// Store swaps whole snapshots atomically. Readers never block and always see
// either the previous or the next snapshot in full.
type Store struct {
	mu      sync.Mutex // Serializes writers
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{now: time.Now}
}

// Replace installs records as the active dataset and returns its snapshot
func (s *Store) Replace(records []models.UsageRecord) *Snapshot {
	owned := make([]models.UsageRecord, len(records))
	copy(owned, records)

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		ID:         uuid.NewString(),
		IngestedAt: s.now().UTC(),
		Records:    owned,
	}
	s.current.Store(snap)
	return snap
}

// Current returns the active snapshot, or a no-data error before the first ingestion
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.NoData()
	}
	return snap, nil
}
