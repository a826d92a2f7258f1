// Package labelstore holds the labeled pairs accumulated across a linkage
// run. It is the single source of truth the classifier trains on.
package labelstore

import (
	"sync"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Row is one labeled (or oracle-queried) pair.
type Row struct {
	Key      models.PairKey
	Features models.FeatureVector
	Label    models.Label
	Source   models.LabelSource
}

// Store is the growing table of labeled pairs. It grows monotonically and
// never shrinks; duplicate inserts are last-write-wins. Each loop stage
// receives the store by handle, never through package state.
type Store struct {
	mu      sync.RWMutex
	rows    map[models.PairKey]Row
	order   []models.PairKey
	version int
}

// NewStore creates an empty label store.
func NewStore() *Store {
	return &Store{rows: make(map[models.PairKey]Row)}
}

// Insert records a labeled pair. Inserting an existing key overwrites its
// row (last-write-wins) without changing insertion order.
func (s *Store) Insert(key models.PairKey, features models.FeatureVector, label models.Label, source models.LabelSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[key]; !exists {
		s.order = append(s.order, key)
	}
	s.rows[key] = Row{Key: key, Features: features, Label: label, Source: source}
	s.version++
}

// Get returns the row for a key, if present.
func (s *Store) Get(key models.PairKey) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	return row, ok
}

// Has reports whether a pair has been queried or labeled already.
func (s *Store) Has(key models.PairKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rows[key]
	return ok
}

// Version increments on every insert. Loops use it to detect growth.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Len returns the total number of rows, including Unknown results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}

// ConfirmedCount returns the number of Match/NonMatch rows.
func (s *Store) ConfirmedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.rows {
		if row.Label.Confirmed() {
			count++
		}
	}
	return count
}

// Rows returns every row in insertion order.
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.order))
	for _, key := range s.order {
		rows = append(rows, s.rows[key])
	}
	return rows
}

// TrainingRows returns the confirmed rows the classifier fits on. Exact
// string matches are excluded: they need no validation and would bias
// convergence toward the trivial pairs.
func (s *Store) TrainingRows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.order))
	for _, key := range s.order {
		row := s.rows[key]
		if !row.Label.Confirmed() || row.Source == models.LabelSourceExact {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
