package antigaming

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// fakeClock is a movable test clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func testEngine(clock *fakeClock, mutate func(*Config)) *Engine {
	cfg := DefaultConfig()
	cfg.Clock = clock.Now
	cfg.Rand = rand.New(rand.NewSource(42))
	cfg.Challenges.FalsePositiveRate = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return NewEngine(cfg, nil)
}

// gamedEvaluate feeds the engine an identical interaction, the canonical
// gaming signature once repeated.
func gamedEvaluate(e *Engine, agentID string) GamingDetectionResult {
	return e.Evaluate(agentID,
		"The answer is definitely the configuration, absolutely no question about it.",
		"Why did the deployment fail?",
		ExternalMetrics{TrustScore: 80, RiskSignal: -1})
}

func TestEvaluate_InsufficientHistoryReturnsNeutral(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	for i := 0; i < minSamplesForDetection-1; i++ {
		result := gamedEvaluate(e, "thin-agent")
		if result.IsGaming || result.Confidence != 0 || result.GamingType != GamingNone {
			t.Fatalf("evaluation %d on thin history was not neutral: %+v", i+1, result)
		}
	}
}

func TestEvaluate_RepeatedIdenticalBehaviorDetected(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	var result GamingDetectionResult
	for i := 0; i < 6; i++ {
		result = gamedEvaluate(e, "bot-agent")
	}

	if !result.IsGaming {
		t.Fatal("perfectly repeated behavior not detected")
	}
	if len(result.Evidence) == 0 {
		t.Error("detection carried no evidence")
	}
	if len(result.Recommendations) == 0 {
		t.Error("detection carried no recommendations")
	}
	if result.SuspicionLevel == nil {
		t.Fatal("advanced mode did not report a suspicion level")
	}
	if *result.SuspicionLevel < 0.6 {
		t.Errorf("suspicion = %.2f, want >= 0.6 for repeated identical behavior", *result.SuspicionLevel)
	}
}

func TestEvaluate_EvidenceUnionAcrossDetectors(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	var result GamingDetectionResult
	for i := 0; i < 8; i++ {
		result = gamedEvaluate(e, "union-agent")
	}

	// Identical samples trip at least trust-manipulation (flat variance) and
	// pattern-exploitation (perfect consistency); the union must carry both
	// detectors' evidence even though only one names the gaming type.
	if len(result.Evidence) < 2 {
		t.Errorf("evidence union has %d items: %v", len(result.Evidence), result.Evidence)
	}
}

func TestEvaluate_BasicModeOmitsAdvancedFields(t *testing.T) {
	e := testEngine(newFakeClock(), func(cfg *Config) {
		cfg.AdvancedFeaturesEnabled = false
	})

	var result GamingDetectionResult
	for i := 0; i < 6; i++ {
		result = gamedEvaluate(e, "basic-agent")
	}

	if result.SuspicionLevel != nil || result.Challenge != nil || result.TrustDecayApplied != nil {
		t.Errorf("basic mode populated advanced fields: %+v", result)
	}
	if _, err := e.GetTrustState("basic-agent"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("basic mode created trust state, err = %v", err)
	}
}

func TestEvaluate_ChallengeIssuedAndCapped(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	for i := 0; i < 10; i++ {
		gamedEvaluate(e, "suspect")
	}

	challenges := e.GetActiveChallenges("suspect")
	if len(challenges) == 0 {
		t.Fatal("no challenge issued at high suspicion")
	}
	if len(challenges) > DefaultChallengeConfig().MaxConcurrent {
		t.Errorf("active challenges = %d, exceeds cap %d", len(challenges), DefaultChallengeConfig().MaxConcurrent)
	}
}

func TestEvaluate_GamingAppliesTrustDecay(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	var result GamingDetectionResult
	for i := 0; i < 6; i++ {
		result = gamedEvaluate(e, "decayed")
	}

	if result.TrustDecayApplied == nil || *result.TrustDecayApplied <= 0 {
		t.Fatal("gaming detection did not apply a trust penalty")
	}
	state, err := e.GetTrustState("decayed")
	if err != nil {
		t.Fatalf("GetTrustState: %v", err)
	}
	if state.CurrentScore >= 100 {
		t.Errorf("trust score = %.1f, want below 100 after penalties", state.CurrentScore)
	}
	if state.GamingDetectionCount == 0 {
		t.Error("gaming detection count not incremented")
	}
}

func TestChallengeLifecycle_RespondAndRecover(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	for i := 0; i < 6; i++ {
		gamedEvaluate(e, "lifecycle")
	}
	challenges := e.GetActiveChallenges("lifecycle")
	if len(challenges) == 0 {
		t.Fatal("no challenge to respond to")
	}
	ch := challenges[0]

	response := "I answered confidently because the deployment logs provided direct evidence: the config diff was verified against the rollout, and based on that the root cause was established."
	outcome, err := e.EvaluateChallengeResponse("lifecycle", ch.ID, response)
	if err != nil {
		t.Fatalf("EvaluateChallengeResponse: %v", err)
	}
	if ch.Type != ChallengeFalsePositiveTest && !outcome.Passed {
		t.Errorf("grounded response failed: %+v", outcome)
	}

	// Terminal either way.
	for _, remaining := range e.GetActiveChallenges("lifecycle") {
		if remaining.ID == ch.ID {
			t.Error("answered challenge still active")
		}
	}
	if _, err := e.EvaluateChallengeResponse("lifecycle", ch.ID, response); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("re-answering returned %v, want ErrChallengeNotFound", err)
	}
}

func TestEvaluateChallengeResponse_UnknownReferences(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	if _, err := e.EvaluateChallengeResponse("ghost", "c-1", "hi"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("unknown agent returned %v, want ErrAgentNotFound", err)
	}

	gamedEvaluate(e, "known")
	if _, err := e.EvaluateChallengeResponse("known", "missing", "hi"); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("unknown challenge returned %v, want ErrChallengeNotFound", err)
	}
}

func TestExpireStaleChallenges_PenalizesAndRemoves(t *testing.T) {
	clock := newFakeClock()
	e := testEngine(clock, nil)

	for i := 0; i < 6; i++ {
		gamedEvaluate(e, "latecomer")
	}
	if len(e.GetActiveChallenges("latecomer")) == 0 {
		t.Fatal("no challenge issued")
	}
	before, err := e.GetTrustState("latecomer")
	if err != nil {
		t.Fatalf("GetTrustState: %v", err)
	}

	clock.Advance(DefaultChallengeConfig().Timeout + time.Minute)
	expired := e.ExpireStaleChallenges(clock.Now())
	if expired == 0 {
		t.Fatal("no challenges expired after timeout")
	}
	if len(e.GetActiveChallenges("latecomer")) != 0 {
		t.Error("expired challenges still active")
	}

	after, err := e.GetTrustState("latecomer")
	if err != nil {
		t.Fatalf("GetTrustState: %v", err)
	}
	if after.CurrentScore >= before.CurrentScore {
		t.Errorf("expiry did not penalize: before %.2f, after %.2f", before.CurrentScore, after.CurrentScore)
	}
}

func TestEvaluate_ConcurrentAgentsMatchSequentialOracle(t *testing.T) {
	const (
		agents        = 8
		workersPer    = 2
		perWorkerIter = 20
	)

	clock := newFakeClock()
	concurrent := testEngine(clock, nil)
	oracle := testEngine(clock, nil)

	var wg sync.WaitGroup
	for a := 0; a < agents; a++ {
		agentID := fmt.Sprintf("agent-%d", a)
		for w := 0; w < workersPer; w++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for i := 0; i < perWorkerIter; i++ {
					gamedEvaluate(concurrent, id)
				}
			}(agentID)
		}
	}
	wg.Wait()

	for a := 0; a < agents; a++ {
		agentID := fmt.Sprintf("agent-%d", a)
		for i := 0; i < workersPer*perWorkerIter; i++ {
			gamedEvaluate(oracle, agentID)
		}
	}

	for a := 0; a < agents; a++ {
		agentID := fmt.Sprintf("agent-%d", a)

		gotHist := concurrent.RecentSamples(agentID, DefaultHistoryCapacity)
		wantHist := oracle.RecentSamples(agentID, DefaultHistoryCapacity)
		if len(gotHist) != len(wantHist) {
			t.Errorf("%s history length %d, oracle %d", agentID, len(gotHist), len(wantHist))
		}

		gotState, err1 := concurrent.GetTrustState(agentID)
		wantState, err2 := oracle.GetTrustState(agentID)
		if err1 != nil || err2 != nil {
			t.Fatalf("%s trust state errors: %v / %v", agentID, err1, err2)
		}
		if gotState.CurrentScore != wantState.CurrentScore {
			t.Errorf("%s trust score %.4f, oracle %.4f", agentID, gotState.CurrentScore, wantState.CurrentScore)
		}
		if gotState.GamingDetectionCount != wantState.GamingDetectionCount {
			t.Errorf("%s detection count %d, oracle %d", agentID, gotState.GamingDetectionCount, wantState.GamingDetectionCount)
		}
	}
}

func TestStats_CountersTrackActivity(t *testing.T) {
	e := testEngine(newFakeClock(), nil)

	for i := 0; i < 6; i++ {
		gamedEvaluate(e, "stats-agent")
	}

	stats := e.Stats()
	if stats["total_evaluations"].(int64) != 6 {
		t.Errorf("total_evaluations = %v, want 6", stats["total_evaluations"])
	}
	if stats["challenges_issued"].(int64) == 0 {
		t.Error("challenges_issued not counted")
	}
}
