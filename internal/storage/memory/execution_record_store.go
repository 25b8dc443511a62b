// Package memory provides in-memory storage implementations.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/storage"
)

// ExecutionRecordStore is an in-memory implementation of
// storage.ExecutionRecordStore.
type ExecutionRecordStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.ExecutionRecord // keyed by execution_id
}

// NewExecutionRecordStore creates a new in-memory record store.
func NewExecutionRecordStore() *ExecutionRecordStore {
	return &ExecutionRecordStore{
		data: make(map[int64]*domain.ExecutionRecord),
	}
}

// Insert appends a record. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionRecordStore) Insert(_ context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ExecutionID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ExecutionID] = copyRecord(r)
	return nil
}

// GetByID retrieves a record by execution id. Returns ErrNotFound if not exists.
func (s *ExecutionRecordStore) GetByID(_ context.Context, executionID int64) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[executionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(r), nil
}

// ListAfter retrieves up to limit records with execution_id > afterID.
func (s *ExecutionRecordStore) ListAfter(_ context.Context, afterID int64, limit int) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionRecord
	for id, r := range s.data {
		if id > afterID {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutionID < result[j].ExecutionID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByOutcome retrieves all records with the given outcome.
func (s *ExecutionRecordStore) GetByOutcome(_ context.Context, outcome domain.Outcome) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionRecord
	for _, r := range s.data {
		if r.Outcome == outcome {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExecutionID < result[j].ExecutionID
	})
	return result, nil
}

// Count returns the number of records.
func (s *ExecutionRecordStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// MaxExecutionID returns the highest execution id, 0 when empty.
func (s *ExecutionRecordStore) MaxExecutionID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for id := range s.data {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// copyRecord deep-copies so callers cannot mutate stored state.
func copyRecord(r *domain.ExecutionRecord) *domain.ExecutionRecord {
	out := *r
	out.AmountIn = new(big.Int).Set(r.AmountIn)
	out.AmountOut = new(big.Int).Set(r.AmountOut)
	return &out
}

var _ storage.ExecutionRecordStore = (*ExecutionRecordStore)(nil)
