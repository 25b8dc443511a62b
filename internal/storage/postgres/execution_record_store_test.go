package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/storage"
)

func testRecord(id int64, outcome domain.Outcome, reason string) *domain.ExecutionRecord {
	return domain.NewExecutionRecord(
		id, 1700000000+id,
		big.NewInt(id*1000), big.NewInt(id*50000),
		outcome, reason, "integration-test",
	)
}

func TestExecutionRecordStore_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	r := testRecord(1, domain.OutcomeSuccess, "")
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, r.ExecutionID, got.ExecutionID)
	assert.Equal(t, r.ExecutedAt, got.ExecutedAt)
	assert.Equal(t, 0, r.AmountIn.Cmp(got.AmountIn))
	assert.Equal(t, 0, r.AmountOut.Cmp(got.AmountOut))
	assert.True(t, r.PricePerToken.Equal(got.PricePerToken))
	assert.Equal(t, domain.OutcomeSuccess, got.Outcome)
	assert.Equal(t, "integration-test", got.Executor)
}

func TestExecutionRecordStore_LargeAmountsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	// Amounts beyond int64 must survive exactly.
	amountIn, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	amountOut, _ := new(big.Int).SetString("987654321098765432109876543210987654", 10)
	r := domain.NewExecutionRecord(1, 1700000000, amountIn, amountOut, domain.OutcomeSuccess, "", "test")

	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, amountIn.String(), got.AmountIn.String())
	assert.Equal(t, amountOut.String(), got.AmountOut.String())

	wantPrice := decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0))
	assert.True(t, wantPrice.Equal(got.PricePerToken),
		"price mismatch: want %s, got %s", wantPrice, got.PricePerToken)
}

func TestExecutionRecordStore_DuplicateKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord(1, domain.OutcomeSuccess, "")))

	err := store.Insert(ctx, testRecord(1, domain.OutcomeFailed, domain.ReasonSlippageExceeded))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestExecutionRecordStore_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)

	_, err := store.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionRecordStore_ListAfterPaging(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, store.Insert(ctx, testRecord(id, domain.OutcomeSuccess, "")))
	}

	page, err := store.ListAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].ExecutionID)
	assert.Equal(t, int64(2), page[1].ExecutionID)

	page, err = store.ListAfter(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(3), page[0].ExecutionID)
	assert.Equal(t, int64(5), page[2].ExecutionID)

	page, err = store.ListAfter(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestExecutionRecordStore_GetByOutcome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord(1, domain.OutcomeSuccess, "")))
	require.NoError(t, store.Insert(ctx, testRecord(2, domain.OutcomeFailed, domain.ReasonInsufficientLiquidity)))
	require.NoError(t, store.Insert(ctx, testRecord(3, domain.OutcomeFailed, domain.ReasonCircuitBreakerActive)))

	failed, err := store.GetByOutcome(ctx, domain.OutcomeFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, domain.ReasonInsufficientLiquidity, failed[0].Reason)
	assert.Equal(t, domain.ReasonCircuitBreakerActive, failed[1].Reason)
}

func TestExecutionRecordStore_CountAndMaxID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExecutionRecordStore(pool)
	ctx := context.Background()

	maxID, err := store.MaxExecutionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID, "empty table must report max id 0")

	require.NoError(t, store.Insert(ctx, testRecord(10, domain.OutcomeSuccess, "")))
	require.NoError(t, store.Insert(ctx, testRecord(7, domain.OutcomeSuccess, "")))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	maxID, err = store.MaxExecutionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), maxID)
}
