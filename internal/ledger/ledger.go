// Package ledger tracks cumulative and rolling-window execution totals.
package ledger

import (
	"math/big"
	"sync"
	"time"
)

// DefaultWindow is the rolling cap window.
const DefaultWindow = 24 * time.Hour

// spendEntry is one (timestamp, amount) pair in the rolling log.
type spendEntry struct {
	at     int64 // unix seconds
	amount *big.Int
}

// UsageLedger holds totals written only by the execution orchestrator.
// Reads are concurrent; entries older than the window are expired lazily
// when the rolling sum is computed, and physically dropped on the next
// write.
type UsageLedger struct {
	mu sync.RWMutex

	window time.Duration

	totalSpent  *big.Int
	totalBought *big.Int
	count       int64
	lastAt      int64 // unix seconds, 0 before the first execution

	entries []spendEntry
}

// New creates an empty ledger. A zero window defaults to 24h.
func New(window time.Duration) *UsageLedger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &UsageLedger{
		window:      window,
		totalSpent:  new(big.Int),
		totalBought: new(big.Int),
	}
}

// RecordExecution appends a successful execution. Expired entries are
// pruned here so the log never grows past one window of activity.
func (l *UsageLedger) RecordExecution(now time.Time, amountIn, amountOut *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nowSec := now.Unix()

	l.totalSpent.Add(l.totalSpent, amountIn)
	l.totalBought.Add(l.totalBought, amountOut)
	l.count++
	l.lastAt = nowSec

	l.pruneLocked(nowSec)
	l.entries = append(l.entries, spendEntry{at: nowSec, amount: new(big.Int).Set(amountIn)})
}

// pruneLocked drops entries that fell out of the window.
func (l *UsageLedger) pruneLocked(nowSec int64) {
	cutoff := nowSec - int64(l.window/time.Second)
	i := 0
	for i < len(l.entries) && l.entries[i].at <= cutoff {
		i++
	}
	if i > 0 {
		l.entries = append([]spendEntry(nil), l.entries[i:]...)
	}
}

// RollingSpend returns the sum of amounts spent within the trailing window
// ending at now. Expired entries are skipped, not removed.
func (l *UsageLedger) RollingSpend(now time.Time) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cutoff := now.Unix() - int64(l.window/time.Second)
	sum := new(big.Int)
	for _, e := range l.entries {
		if e.at > cutoff {
			sum.Add(sum, e.amount)
		}
	}
	return sum
}

// TotalSpent returns the all-time spend.
func (l *UsageLedger) TotalSpent() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSpent)
}

// TotalBought returns the all-time tokens acquired.
func (l *UsageLedger) TotalBought() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalBought)
}

// Count returns the number of successful executions.
func (l *UsageLedger) Count() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// LastExecution returns the unix timestamp of the last successful
// execution, 0 if none.
func (l *UsageLedger) LastExecution() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastAt
}
