// Package reporting builds execution-history summaries from the record
// store and renders them as Markdown.
package reporting

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"buyback-engine/internal/domain"
	"buyback-engine/internal/storage"
)

// pageSize is the ListAfter batch size used when walking the history.
const pageSize = 500

// recentLimit caps the recent-activity table.
const recentLimit = 20

// Generator produces reports from the stored execution history.
type Generator struct {
	records storage.ExecutionRecordStore
	now     func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(records storage.ExecutionRecordStore) *Generator {
	return &Generator{
		records: records,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate walks the full history in id order and produces a report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	totalSpent := new(big.Int)
	totalBought := new(big.Int)
	failuresByReason := make(map[string]int)

	var (
		successes int
		failures  int
		firstAt   int64
		lastAt    int64
		recent    []ExecutionRow
	)

	afterID := int64(0)
	for {
		page, err := g.records.ListAfter(ctx, afterID, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			switch rec.Outcome {
			case domain.OutcomeSuccess:
				successes++
				totalSpent.Add(totalSpent, rec.AmountIn)
				totalBought.Add(totalBought, rec.AmountOut)
				if firstAt == 0 {
					firstAt = rec.ExecutedAt
				}
				lastAt = rec.ExecutedAt
			case domain.OutcomeFailed:
				failures++
				failuresByReason[rec.Reason]++
			}

			recent = append(recent, ExecutionRow{
				ExecutionID:   rec.ExecutionID,
				ExecutedAt:    rec.ExecutedAt,
				AmountIn:      rec.AmountIn.String(),
				AmountOut:     rec.AmountOut.String(),
				PricePerToken: rec.PricePerToken.String(),
				Outcome:       string(rec.Outcome),
				Reason:        rec.Reason,
			})
			if len(recent) > recentLimit {
				recent = recent[len(recent)-recentLimit:]
			}
		}

		afterID = page[len(page)-1].ExecutionID
	}

	// Volume-weighted average: the ratio of aggregate tokens acquired to
	// aggregate spend, not a mean of per-execution prices.
	var avgPrice decimal.Decimal
	if totalSpent.Sign() > 0 {
		avgPrice = decimal.NewFromBigInt(totalBought, 0).Div(decimal.NewFromBigInt(totalSpent, 0))
	}

	breakdown := make([]FailureRow, 0, len(failuresByReason))
	for reason, count := range failuresByReason {
		breakdown = append(breakdown, FailureRow{Reason: reason, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Reason < breakdown[j].Reason })

	return &Report{
		GeneratedAt: g.now(),
		Totals: TotalsSection{
			TotalSpent:       totalSpent.String(),
			TotalAcquired:    totalBought.String(),
			AvgPrice:         avgPrice,
			FirstExecutionAt: firstAt,
			LastExecutionAt:  lastAt,
		},
		Successes:        successes,
		Failures:         failures,
		FailureBreakdown: breakdown,
		Recent:           recent,
	}, nil
}
