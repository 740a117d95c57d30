package antigaming

import (
	"fmt"
	"testing"
	"time"
)

func historySample(agentID string, seq int, ts time.Time) BehaviorSample {
	return BehaviorSample{
		AgentID:          agentID,
		Timestamp:        ts,
		TrustScoreAtTime: float64(seq),
	}
}

func TestHistory_CapacityNeverExceeded(t *testing.T) {
	h := NewHistory(50)
	base := time.Now()
	for i := 0; i < 200; i++ {
		h.Append(historySample("a", i, base.Add(time.Duration(i)*time.Second)))
		if h.Len() > 50 {
			t.Fatalf("history grew past capacity: %d", h.Len())
		}
	}
	if h.Len() != 50 {
		t.Errorf("final length = %d, want 50", h.Len())
	}
}

func TestHistory_OldestEvictedFirstOrderPreserved(t *testing.T) {
	h := NewHistory(5)
	base := time.Now()
	for i := 0; i < 8; i++ {
		h.Append(historySample("a", i, base.Add(time.Duration(i)*time.Second)))
	}

	recent := h.Recent(5)
	if len(recent) != 5 {
		t.Fatalf("Recent(5) returned %d samples", len(recent))
	}
	// Samples 0-2 evicted; 3-7 remain in append order.
	for i, s := range recent {
		want := float64(i + 3)
		if s.TrustScoreAtTime != want {
			t.Errorf("recent[%d].TrustScoreAtTime = %v, want %v", i, s.TrustScoreAtTime, want)
		}
	}
}

func TestHistory_RecentMoreThanStored(t *testing.T) {
	h := NewHistory(10)
	h.Append(historySample("a", 0, time.Now()))
	if got := h.Recent(100); len(got) != 1 {
		t.Errorf("Recent(100) with 1 stored = %d samples", len(got))
	}
	if got := h.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestHistory_TimestampsMonotonicallyNonDecreasing(t *testing.T) {
	h := NewHistory(10)
	base := time.Now()
	h.Append(historySample("a", 0, base))
	h.Append(historySample("a", 1, base.Add(-time.Hour))) // clock skew

	recent := h.Recent(2)
	if recent[1].Timestamp.Before(recent[0].Timestamp) {
		t.Error("timestamps regressed within history")
	}
}

func TestHistory_RecentReturnsCopies(t *testing.T) {
	h := NewHistory(10)
	h.Append(historySample("a", 7, time.Now()))

	recent := h.Recent(1)
	recent[0].TrustScoreAtTime = 999

	if h.Recent(1)[0].TrustScoreAtTime != 7 {
		t.Error("mutating Recent result leaked into the store")
	}
}

func TestHistory_IndependentPerInstance(t *testing.T) {
	a := NewHistory(10)
	b := NewHistory(10)
	for i := 0; i < 3; i++ {
		a.Append(historySample(fmt.Sprintf("agent-%d", i), i, time.Now()))
	}
	if b.Len() != 0 {
		t.Errorf("unrelated history has %d samples", b.Len())
	}
}
