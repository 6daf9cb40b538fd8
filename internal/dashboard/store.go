// Package dashboard holds the collection currently shown on the dashboard and
// builds the views served by the API.
package dashboard

import (
	"sync/atomic"
	"time"

	"github.com/kjannette/watchtower-backend/internal/models"
)

const (
	SourceNone   = "none"
	SourceJob    = "job"
	SourceUpload = "upload"
)

// Snapshot is one immutable collection plus where it came from. Callers must
// not modify Records.
type Snapshot struct {
	Records     []models.MarketRecord `json:"-"`
	Source      string                `json:"source"`
	JobID       string                `json:"jobId,omitempty"`
	StoragePath string                `json:"storagePath,omitempty"`
	LoadedAt    time.Time             `json:"loadedAt"`
}

// Store is the single current-collection reference. Replace swaps the whole
// snapshot; readers never observe a partially updated collection.
type Store struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

func NewStore() *Store {
	s := &Store{now: time.Now}
	s.current.Store(&Snapshot{Records: []models.MarketRecord{}, Source: SourceNone, LoadedAt: s.now()})
	return s
}

// Load returns the current snapshot. It is never nil.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Replace installs a new collection and returns the snapshot that was stored.
func (s *Store) Replace(records []models.MarketRecord, source, jobID, storagePath string) *Snapshot {
	snap := s.build(records, source, jobID, storagePath)
	s.current.Store(snap)
	return snap
}

// ReplaceUnless installs a new collection unless keep approves of the
// snapshot current at the moment of the swap. A concurrent Replace between
// the check and the swap makes it check again. It reports whether the swap
// happened.
func (s *Store) ReplaceUnless(records []models.MarketRecord, source, jobID, storagePath string,
	keep func(cur *Snapshot) bool) (*Snapshot, bool) {
	snap := s.build(records, source, jobID, storagePath)
	for {
		cur := s.current.Load()
		if keep(cur) {
			return cur, false
		}
		if s.current.CompareAndSwap(cur, snap) {
			return snap, true
		}
	}
}

func (s *Store) build(records []models.MarketRecord, source, jobID, storagePath string) *Snapshot {
	if records == nil {
		records = []models.MarketRecord{}
	}
	return &Snapshot{
		Records:     records,
		Source:      source,
		JobID:       jobID,
		StoragePath: storagePath,
		LoadedAt:    s.now(),
	}
}

// Clear replaces the collection with an empty one ("no data").
func (s *Store) Clear() *Snapshot {
	return s.Replace(nil, SourceNone, "", "")
}
