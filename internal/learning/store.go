package learning

import (
	"context"
	"sync"

	"github.com/zikalyze/core/pkg/models"
)

// Store is the key-value persistence boundary for learning records.
// Implementations must provide atomic per-key get/put; last-write-wins
// under concurrent updates to the same symbol is accepted.
type Store interface {
	// Get returns the record for a symbol, or a fresh default record
	// when none exists (missing or corrupt records are treated as a
	// first observation).
	Get(ctx context.Context, symbol string) (*models.LearningRecord, error)
	// Put persists a record, replacing any previous value.
	Put(ctx context.Context, record *models.LearningRecord) error
	// Wipe removes the record for a symbol. Used only for explicit
	// user data deletion.
	Wipe(ctx context.Context, symbol string) error
}

// MemoryStore is a map-backed Store used in tests and as a degraded
// fallback when Redis is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.LearningRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.LearningRecord)}
}

func (s *MemoryStore) Get(_ context.Context, symbol string) (*models.LearningRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[symbol]; ok {
		cp := rec
		cp.SupportLevels = append([]float64(nil), rec.SupportLevels...)
		cp.ResistanceLevels = append([]float64(nil), rec.ResistanceLevels...)
		return &cp, nil
	}
	return models.NewLearningRecord(symbol), nil
}

func (s *MemoryStore) Put(_ context.Context, record *models.LearningRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Symbol] = *record
	return nil
}

func (s *MemoryStore) Wipe(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, symbol)
	return nil
}
