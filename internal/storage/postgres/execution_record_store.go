package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/storage"
)

// ExecutionRecordStore implements storage.ExecutionRecordStore using
// PostgreSQL. Wei-scale amounts are persisted as decimal strings; they can
// exceed 64 bits and must survive round trips exactly.
type ExecutionRecordStore struct {
	pool *Pool
}

// NewExecutionRecordStore creates a new ExecutionRecordStore.
func NewExecutionRecordStore(pool *Pool) *ExecutionRecordStore {
	return &ExecutionRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionRecordStore = (*ExecutionRecordStore)(nil)

// Insert appends a record. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionRecordStore) Insert(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ExecutionID <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO execution_records (
			execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ExecutionID, r.ExecutedAt, r.AmountIn.String(), r.AmountOut.String(),
		r.PricePerToken.String(), string(r.Outcome), r.Reason, r.Executor,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by execution id. Returns ErrNotFound if not exists.
func (s *ExecutionRecordStore) GetByID(ctx context.Context, executionID int64) (*domain.ExecutionRecord, error) {
	query := `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE execution_id = $1
	`

	row := s.pool.QueryRow(ctx, query, executionID)
	r, err := scanExecutionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution record by id: %w", err)
	}
	return r, nil
}

// ListAfter retrieves up to limit records with execution_id > afterID.
func (s *ExecutionRecordStore) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE execution_id > $1
		ORDER BY execution_id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list execution records after %d: %w", afterID, err)
	}
	defer rows.Close()

	return scanExecutionRecords(rows)
}

// GetByOutcome retrieves all records with the given outcome.
func (s *ExecutionRecordStore) GetByOutcome(ctx context.Context, outcome domain.Outcome) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT execution_id, executed_at, amount_in, amount_out,
			price_per_token, outcome, reason, executor
		FROM execution_records
		WHERE outcome = $1
		ORDER BY execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(outcome))
	if err != nil {
		return nil, fmt.Errorf("get execution records by outcome: %w", err)
	}
	defer rows.Close()

	return scanExecutionRecords(rows)
}

// Count returns the number of records.
func (s *ExecutionRecordStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM execution_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count execution records: %w", err)
	}
	return count, nil
}

// MaxExecutionID returns the highest execution id, 0 when empty.
func (s *ExecutionRecordStore) MaxExecutionID(ctx context.Context) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(execution_id), 0) FROM execution_records`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max execution id: %w", err)
	}
	return max, nil
}

// scanExecutionRecord scans a single row into an ExecutionRecord.
func scanExecutionRecord(row pgx.Row) (*domain.ExecutionRecord, error) {
	var (
		r         domain.ExecutionRecord
		amountIn  string
		amountOut string
		price     string
		outcome   string
	)

	err := row.Scan(
		&r.ExecutionID, &r.ExecutedAt, &amountIn, &amountOut,
		&price, &outcome, &r.Reason, &r.Executor,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeRecordValues(&r, amountIn, amountOut, price, outcome); err != nil {
		return nil, err
	}
	return &r, nil
}

// scanExecutionRecords scans multiple rows into a slice of ExecutionRecord.
func scanExecutionRecords(rows pgx.Rows) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord

	for rows.Next() {
		var (
			r         domain.ExecutionRecord
			amountIn  string
			amountOut string
			price     string
			outcome   string
		)

		err := rows.Scan(
			&r.ExecutionID, &r.ExecutedAt, &amountIn, &amountOut,
			&price, &outcome, &r.Reason, &r.Executor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution record row: %w", err)
		}

		if err := decodeRecordValues(&r, amountIn, amountOut, price, outcome); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution record rows: %w", err)
	}

	return records, nil
}

// decodeRecordValues converts the string-encoded columns back to their
// domain types.
func decodeRecordValues(r *domain.ExecutionRecord, amountIn, amountOut, price, outcome string) error {
	var ok bool
	if r.AmountIn, ok = new(big.Int).SetString(amountIn, 10); !ok {
		return fmt.Errorf("decode amount_in %q", amountIn)
	}
	if r.AmountOut, ok = new(big.Int).SetString(amountOut, 10); !ok {
		return fmt.Errorf("decode amount_out %q", amountOut)
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return fmt.Errorf("decode price_per_token %q: %w", price, err)
	}
	r.PricePerToken = p
	r.Outcome = domain.Outcome(outcome)
	return nil
}
