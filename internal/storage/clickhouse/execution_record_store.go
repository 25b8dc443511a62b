package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/storage"
)

// ExecutionRecordStore implements storage.ExecutionRecordStore using
// ClickHouse. Amounts map to UInt256 columns, which the driver reads and
// writes as *big.Int.
type ExecutionRecordStore struct {
	conn *Conn
}

// NewExecutionRecordStore creates a new ExecutionRecordStore.
func NewExecutionRecordStore(conn *Conn) *ExecutionRecordStore {
	return &ExecutionRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExecutionRecordStore = (*ExecutionRecordStore)(nil)

// Insert appends a record. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionRecordStore) Insert(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID <= 0 {
		return storage.ErrInvalidInput
	}

	// MergeTree does not enforce uniqueness; check explicitly to keep
	// append-only semantics.
	exists, err := s.exists(ctx, r.ExecutionID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO execution_records (
			execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		uint64(r.ExecutionID), time.Unix(r.ExecutedAt, 0).UTC(),
		r.AmountIn, r.AmountOut,
		r.PricePerToken, string(r.Outcome), r.Reason, r.Executor,
	)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by execution id. Returns ErrNotFound if not exists.
func (s *ExecutionRecordStore) GetByID(ctx context.Context, executionID int64) (*domain.ExecutionRecord, error) {
	records, err := s.query(ctx, `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE execution_id = ?
		LIMIT 1
	`, uint64(executionID))
	if err != nil {
		return nil, fmt.Errorf("get execution record by id: %w", err)
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// ListAfter retrieves up to limit records with execution_id > afterID.
func (s *ExecutionRecordStore) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.ExecutionRecord, error) {
	records, err := s.query(ctx, `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE execution_id > ?
		ORDER BY execution_id ASC
		LIMIT ?
	`, uint64(afterID), uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("list execution records after %d: %w", afterID, err)
	}
	return records, nil
}

// GetByOutcome retrieves all records with the given outcome.
func (s *ExecutionRecordStore) GetByOutcome(ctx context.Context, outcome domain.Outcome) ([]*domain.ExecutionRecord, error) {
	records, err := s.query(ctx, `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE outcome = ?
		ORDER BY execution_id ASC
	`, string(outcome))
	if err != nil {
		return nil, fmt.Errorf("get execution records by outcome: %w", err)
	}
	return records, nil
}

// Count returns the number of records.
func (s *ExecutionRecordStore) Count(ctx context.Context) (int64, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM execution_records`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count execution records: %w", err)
	}
	return int64(count), nil
}

// MaxExecutionID returns the highest execution id, 0 when empty.
func (s *ExecutionRecordStore) MaxExecutionID(ctx context.Context) (int64, error) {
	var max uint64
	row := s.conn.QueryRow(ctx, `SELECT COALESCE(MAX(execution_id), 0) FROM execution_records`)
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max execution id: %w", err)
	}
	return int64(max), nil
}

// exists checks whether a record with the id is present.
func (s *ExecutionRecordStore) exists(ctx context.Context, executionID int64) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM execution_records WHERE execution_id = ?`, uint64(executionID))
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// query runs a SELECT and scans the rows.
func (s *ExecutionRecordStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ExecutionRecord, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ExecutionRecord
	for rows.Next() {
		var (
			r          domain.ExecutionRecord
			id         uint64
			executedAt time.Time
			amountIn   big.Int
			amountOut  big.Int
			price      decimal.Decimal
			outcome    string
		)

		err := rows.Scan(&id, &executedAt, &amountIn, &amountOut, &price, &outcome, &r.Reason, &r.Executor)
		if err != nil {
			return nil, fmt.Errorf("scan execution record row: %w", err)
		}

		r.ExecutionID = int64(id)
		r.ExecutedAt = executedAt.Unix()
		r.AmountIn = new(big.Int).Set(&amountIn)
		r.AmountOut = new(big.Int).Set(&amountOut)
		r.PricePerToken = price
		r.Outcome = domain.Outcome(outcome)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution record rows: %w", err)
	}

	return records, nil
}
