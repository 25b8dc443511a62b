package breaker

import (
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	b := New(true, 3, 30*time.Minute, time.Hour)
	if b.Active(time.Now()) {
		t.Error("new breaker must be closed")
	}
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	b := New(true, 3, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	if b.RecordFailure(now) {
		t.Error("first failure must not trip")
	}
	if b.RecordFailure(now) {
		t.Error("second failure must not trip")
	}
	if b.Active(now) {
		t.Error("breaker must stay closed below the threshold")
	}

	if !b.RecordFailure(now) {
		t.Error("third failure must trip")
	}
	if !b.Active(now) {
		t.Error("breaker must be open after tripping")
	}

	// Counter resets on trip so the tally starts fresh after cooldown.
	if got := b.ConsecutiveFailures(); got != 0 {
		t.Errorf("expected counter reset on trip, got %d", got)
	}
}

func TestCircuitBreaker_LazyCloseAfterCooldown(t *testing.T) {
	b := New(true, 1, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	b.RecordFailure(now)
	if !b.Active(now.Add(29 * time.Minute)) {
		t.Error("breaker must be open inside the cooldown window")
	}
	if b.Active(now.Add(30 * time.Minute)) {
		t.Error("breaker must close once the cooldown expires")
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	b := New(true, 3, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	b.RecordFailure(now)
	b.RecordFailure(now)
	b.RecordSuccess()

	// Two more failures: tally is 2, not 4.
	b.RecordFailure(now)
	if b.RecordFailure(now) {
		t.Error("breaker must not trip, success reset the tally")
	}
	if b.Active(now) {
		t.Error("breaker must stay closed")
	}
}

func TestCircuitBreaker_DeviationTrip(t *testing.T) {
	b := New(true, 3, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	b.TripDeviation(now)

	if !b.Active(now) {
		t.Error("deviation trip must open the breaker immediately")
	}

	// Deviation uses its own cooldown period.
	_, until := b.Status(now)
	if want := now.Add(time.Hour).Unix(); until != want {
		t.Errorf("expected cooldown until %d, got %d", want, until)
	}
	if b.Active(now.Add(time.Hour)) {
		t.Error("breaker must close after the deviation cooldown")
	}
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	b := New(false, 1, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	if b.RecordFailure(now) {
		t.Error("disabled breaker must not trip")
	}
	b.TripDeviation(now)
	if b.Active(now) {
		t.Error("disabled breaker must never be active")
	}
}

func TestCircuitBreaker_Status(t *testing.T) {
	b := New(true, 1, 30*time.Minute, time.Hour)
	now := time.Unix(1700000000, 0)

	active, until := b.Status(now)
	if active || until != 0 {
		t.Errorf("untripped breaker: expected (false, 0), got (%v, %d)", active, until)
	}

	b.RecordFailure(now)
	active, until = b.Status(now)
	if !active {
		t.Error("expected active after trip")
	}
	if want := now.Add(30 * time.Minute).Unix(); until != want {
		t.Errorf("expected cooldown until %d, got %d", want, until)
	}
}
