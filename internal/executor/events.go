package executor

import (
	"log"

	"buyback-engine/internal/domain"
)

// EventSink receives the audit events emitted on every recorded attempt.
// Implementations must not block; the engine calls them while holding the
// execution lock.
type EventSink interface {
	// BuybackExecuted is emitted after a successful attempt.
	BuybackExecuted(rec *domain.ExecutionRecord)

	// ExecutionFailed is emitted after a recorded failure.
	ExecutionFailed(rec *domain.ExecutionRecord)

	// CircuitBreakerTriggered is emitted when the breaker opens.
	CircuitBreakerTriggered(reason string, cooldownUntil, timestamp int64)
}

// LogSink writes events to a logger. It is the default sink.
type LogSink struct {
	Logger *log.Logger
}

// BuybackExecuted logs a successful attempt.
func (s *LogSink) BuybackExecuted(rec *domain.ExecutionRecord) {
	s.Logger.Printf("BuybackExecuted id=%d in=%s out=%s price=%s executor=%s ts=%d",
		rec.ExecutionID, rec.AmountIn, rec.AmountOut, rec.PricePerToken, rec.Executor, rec.ExecutedAt)
}

// ExecutionFailed logs a recorded failure.
func (s *LogSink) ExecutionFailed(rec *domain.ExecutionRecord) {
	s.Logger.Printf("ExecutionFailed id=%d reason=%s ts=%d", rec.ExecutionID, rec.Reason, rec.ExecutedAt)
}

// CircuitBreakerTriggered logs a breaker trip.
func (s *LogSink) CircuitBreakerTriggered(reason string, cooldownUntil, timestamp int64) {
	s.Logger.Printf("CircuitBreakerTriggered reason=%s cooldownUntil=%d ts=%d", reason, cooldownUntil, timestamp)
}

var _ EventSink = (*LogSink)(nil)
