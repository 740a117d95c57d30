package trust

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestDecay_LazyInitAtFullScore(t *testing.T) {
	de := NewDecayEngine(DefaultDecayConfig(), newFakeClock().Now)

	de.ApplyDecay("fresh")
	st, err := de.Snapshot("fresh")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if st.CurrentScore != 100 {
		t.Errorf("initial score = %.2f, want 100", st.CurrentScore)
	}
	if st.DecayRate != DefaultDecayConfig().BaseDecayRate {
		t.Errorf("initial decay rate = %v", st.DecayRate)
	}
}

func TestDecay_UnknownAgentNotFound(t *testing.T) {
	de := NewDecayEngine(DefaultDecayConfig(), newFakeClock().Now)
	if _, err := de.Snapshot("nobody"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Snapshot(unknown) = %v, want ErrAgentNotFound", err)
	}
}

func TestDecay_TimeBasedDecayProportionalToDays(t *testing.T) {
	clock := newFakeClock()
	de := NewDecayEngine(DefaultDecayConfig(), clock.Now)

	de.ApplyDecay("idle")
	clock.Advance(48 * time.Hour)
	removed := de.ApplyDecay("idle")

	// 100 * 0.01/day * 2 days
	if removed < 1.99 || removed > 2.01 {
		t.Errorf("decay over 2 days = %.4f, want ~2.0", removed)
	}
}

func TestDecay_RepeatOffenderPenaltiesEscalate(t *testing.T) {
	clock := newFakeClock()
	de := NewDecayEngine(DefaultDecayConfig(), clock.Now)

	first := de.ApplyGamingPenalty("cheat", "pattern_exploitation")
	de.ApplyGamingPenalty("cheat", "pattern_exploitation")
	third := de.ApplyGamingPenalty("cheat", "pattern_exploitation")
	fourth := de.ApplyGamingPenalty("cheat", "pattern_exploitation")

	if fourth <= first {
		t.Errorf("penalty at detection 4 (%.2f) not larger than at detection 1 (%.2f)", fourth, first)
	}
	if third <= first {
		t.Errorf("penalty at detection 3 (%.2f) not larger than at detection 1 (%.2f)", third, first)
	}

	st, _ := de.Snapshot("cheat")
	if st.DecayRate > DefaultDecayConfig().MaxDecayRate {
		t.Errorf("decay rate %.4f exceeds max %.4f", st.DecayRate, DefaultDecayConfig().MaxDecayRate)
	}
	if st.RecoveryDifficulty > 20 {
		t.Errorf("recovery difficulty %.2f exceeds cap 20", st.RecoveryDifficulty)
	}
	if st.GamingDetectionCount != 4 {
		t.Errorf("detection count = %d, want 4", st.GamingDetectionCount)
	}
}

func TestDecay_ScoreAlwaysWithinBounds(t *testing.T) {
	clock := newFakeClock()
	de := NewDecayEngine(DefaultDecayConfig(), clock.Now)

	// Hammer the score through penalties, decay, and oversized recovery.
	for i := 0; i < 30; i++ {
		de.ApplyGamingPenalty("bounds", "trust_manipulation")
		clock.Advance(24 * time.Hour)
		de.ApplyDecay("bounds")
	}
	st, _ := de.Snapshot("bounds")
	if st.CurrentScore < 0 || st.CurrentScore > 100 {
		t.Fatalf("score out of [0,100] after penalties: %.4f", st.CurrentScore)
	}

	for i := 0; i < 200; i++ {
		de.ApplyRecovery("bounds", 1000, "test")
	}
	st, _ = de.Snapshot("bounds")
	if st.CurrentScore < 0 || st.CurrentScore > 100 {
		t.Fatalf("score out of [0,100] after recovery: %.4f", st.CurrentScore)
	}
}

func TestDecay_RecoveryScaledByDifficulty(t *testing.T) {
	clock := newFakeClock()
	de := NewDecayEngine(DefaultDecayConfig(), clock.Now)

	de.ApplyGamingPenalty("easy", "emotional_mimicry")
	easyGain := de.ApplyRecovery("easy", 6, "challenge pass")

	hard := "hardened"
	for i := 0; i < 5; i++ {
		de.ApplyGamingPenalty(hard, "emotional_mimicry")
	}
	hardGain := de.ApplyRecovery(hard, 6, "challenge pass")

	if hardGain >= easyGain {
		t.Errorf("repeat offender recovered %.3f, first offender %.3f; want slower recovery", hardGain, easyGain)
	}
}

func TestDecay_ChallengePenaltyScaledByDifficulty(t *testing.T) {
	de := NewDecayEngine(DefaultDecayConfig(), newFakeClock().Now)

	small := de.ApplyChallengePenalty("a", 0.2, "expired challenge")
	large := de.ApplyChallengePenalty("b", 1.0, "expired challenge")
	if large <= small {
		t.Errorf("difficulty scaling broken: %.2f vs %.2f", small, large)
	}
}

func TestDecay_HistoryRecordsEveryMutation(t *testing.T) {
	clock := newFakeClock()
	de := NewDecayEngine(DefaultDecayConfig(), clock.Now)

	de.ApplyGamingPenalty("audited", "metric_optimization")
	clock.Advance(24 * time.Hour)
	de.ApplyDecay("audited")
	de.ApplyRecovery("audited", 5, "challenge pass")

	st, _ := de.Snapshot("audited")
	events := make(map[string]int)
	for _, h := range st.History {
		events[h.Event]++
	}
	for _, want := range []string{"gaming_penalty", "decay", "challenge_recovery"} {
		if events[want] == 0 {
			t.Errorf("no %q entry in audit history: %v", want, events)
		}
	}
}

func TestDecay_DisabledIsNoOp(t *testing.T) {
	cfg := DefaultDecayConfig()
	cfg.Enabled = false
	de := NewDecayEngine(cfg, newFakeClock().Now)

	if removed := de.ApplyGamingPenalty("off", "trust_manipulation"); removed != 0 {
		t.Errorf("disabled engine removed %.2f points", removed)
	}
	if _, err := de.Snapshot("off"); !errors.Is(err, ErrAgentNotFound) {
		t.Error("disabled engine created state")
	}
}

func TestDecay_SnapshotsAreCopies(t *testing.T) {
	de := NewDecayEngine(DefaultDecayConfig(), newFakeClock().Now)
	de.ApplyGamingPenalty("copy", "trust_manipulation")

	st, _ := de.Snapshot("copy")
	st.CurrentScore = -500
	st.History[0].Event = "tampered"

	again, _ := de.Snapshot("copy")
	if again.CurrentScore == -500 || again.History[0].Event == "tampered" {
		t.Error("snapshot mutation leaked into engine state")
	}
}
