package storage

import (
	"context"

	"buyback-engine/internal/domain"
)

// ExecutionRecordStore provides access to the append-only audit trail.
type ExecutionRecordStore interface {
	// Insert appends a record. Returns ErrDuplicateKey if execution_id exists.
	Insert(ctx context.Context, r *domain.ExecutionRecord) error

	// GetByID retrieves a record by execution id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, executionID int64) (*domain.ExecutionRecord, error)

	// ListAfter retrieves up to limit records with execution_id > afterID,
	// ordered by execution_id ASC. External indexers page through the log
	// with this; it is restartable from any id.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.ExecutionRecord, error)

	// GetByOutcome retrieves all records with the given outcome, ordered by execution_id ASC.
	GetByOutcome(ctx context.Context, outcome domain.Outcome) ([]*domain.ExecutionRecord, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)

	// MaxExecutionID returns the highest execution id, 0 when empty.
	MaxExecutionID(ctx context.Context) (int64, error)
}
