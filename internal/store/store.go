// Package store retains uploaded datasets in memory. Datasets are transient:
// they live for the process lifetime, bounded by a retention cap, and every
// chart render re-derives everything else from the raw bytes kept here.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dataset is one uploaded raw CSV.
type Dataset struct {
	ID         string
	Raw        []byte
	Digest     string // hex SHA-256 of Raw; cleaning cache key component
	UploadedAt time.Time
}

// DatasetStore holds uploads keyed by ID with FIFO eviction beyond the
// retention cap. Safe for concurrent use.
type DatasetStore struct {
	mu          sync.RWMutex
	byID        map[string]*Dataset
	order       []string // upload order, oldest first
	maxRetained int
}

// NewDatasetStore creates a store retaining at most maxRetained datasets
// (minimum 1).
func NewDatasetStore(maxRetained int) *DatasetStore {
	if maxRetained < 1 {
		maxRetained = 1
	}
	return &DatasetStore{
		byID:        make(map[string]*Dataset),
		maxRetained: maxRetained,
	}
}

// Put stores a raw upload under a fresh ID, evicting the oldest dataset when
// the cap is exceeded. The caller keeps no ownership of raw after Put.
func (s *DatasetStore) Put(raw []byte) *Dataset {
	sum := sha256.Sum256(raw)
	ds := &Dataset{
		ID:         uuid.New().String(),
		Raw:        raw,
		Digest:     hex.EncodeToString(sum[:]),
		UploadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[ds.ID] = ds
	s.order = append(s.order, ds.ID)
	for len(s.order) > s.maxRetained {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}
	return ds
}

// Get returns the dataset for id, or false when unknown or evicted.
func (s *DatasetStore) Get(id string) (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.byID[id]
	return ds, ok
}

// Len returns the number of retained datasets.
func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
