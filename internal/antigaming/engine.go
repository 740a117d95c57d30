package antigaming

import (
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/vigil/backend/internal/trust"
)

// ============================================================================
// ANTI-GAMING ENGINE - Orchestrates extraction, detection, challenges, decay
// ============================================================================

// ErrChallengeNotFound is returned when a challenge ID does not match an
// active challenge for the agent.
var ErrChallengeNotFound = fmt.Errorf("challenge not found")

// ErrAgentNotFound mirrors the trust package sentinel for callers that only
// import this package.
var ErrAgentNotFound = trust.ErrAgentNotFound

const engineShardCount = 16

// Config is the engine's constructor-time configuration; immutable once the
// engine is built.
type Config struct {
	// AdvancedFeaturesEnabled gates suspicion scoring, challenges and trust
	// decay. Basic mode runs only the detector bank, preserving the behavior
	// of pre-advanced callers.
	AdvancedFeaturesEnabled bool `yaml:"advanced_features_enabled"`

	HistoryCapacity int `yaml:"history_capacity"`

	Thresholds DetectionThresholds `yaml:"detection"`
	Challenges ChallengeConfig     `yaml:"challenges"`
	TrustDecay trust.DecayConfig   `yaml:"trust_decay"`

	// Rand and Clock are injectable for deterministic tests; nil selects
	// time-seeded randomness and time.Now.
	Rand  *rand.Rand       `yaml:"-"`
	Clock func() time.Time `yaml:"-"`
}

// DefaultConfig returns the full production configuration.
func DefaultConfig() Config {
	return Config{
		AdvancedFeaturesEnabled: true,
		HistoryCapacity:         DefaultHistoryCapacity,
		Thresholds:              DefaultDetectionThresholds(),
		Challenges:              DefaultChallengeConfig(),
		TrustDecay:              trust.DefaultDecayConfig(),
	}
}

// agentState is all per-agent mutable state. Guarded by its own mutex so
// agents never block each other.
type agentState struct {
	mu         sync.Mutex
	history    *History
	challenges map[string]Challenge
}

type engineShard struct {
	mu     sync.Mutex
	agents map[string]*agentState
}

// EngineStats are aggregate counters across all agents.
type EngineStats struct {
	mu                sync.Mutex
	totalEvaluations  int64
	detectionsByType  map[GamingType]int64
	challengesIssued  int64
	challengesPassed  int64
	challengesFailed  int64
	challengesExpired int64
}

// Engine is the adaptive anti-gaming engine. One instance owns all per-agent
// history, active challenges and trust state; callers receive only copies.
// All methods are safe for concurrent use; state is sharded by agent ID.
type Engine struct {
	config  Config
	shards  [engineShardCount]*engineShard
	decay   *trust.DecayEngine
	metrics *Metrics

	rngMu sync.Mutex
	rng   *rand.Rand

	now    func() time.Time
	stats  EngineStats
	logger *log.Logger
}

// NewEngine builds an engine from config. metrics may be nil (no
// instrumentation).
func NewEngine(config Config, metrics *Metrics) *Engine {
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = DefaultHistoryCapacity
	}
	if config.Thresholds.TimeWindow <= 0 {
		config.Thresholds = DefaultDetectionThresholds()
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := config.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		config:  config,
		decay:   trust.NewDecayEngine(config.TrustDecay, clock),
		metrics: metrics,
		rng:     rng,
		now:     clock,
		stats:   EngineStats{detectionsByType: make(map[GamingType]int64)},
		logger:  log.New(log.Writer(), "[AntiGaming] ", log.LstdFlags),
	}
	for i := range e.shards {
		e.shards[i] = &engineShard{agents: make(map[string]*agentState)}
	}
	return e
}

func (e *Engine) shardFor(agentID string) *engineShard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return e.shards[h.Sum32()%engineShardCount]
}

// agent returns the agent's state, creating it if needed.
func (e *Engine) agent(agentID string) *agentState {
	shard := e.shardFor(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	st, ok := shard.agents[agentID]
	if !ok {
		st = &agentState{
			history:    NewHistory(e.config.HistoryCapacity),
			challenges: make(map[string]Challenge),
		}
		shard.agents[agentID] = st
	}
	return st
}

// lookup returns the agent's state without creating it.
func (e *Engine) lookup(agentID string) (*agentState, bool) {
	shard := e.shardFor(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	st, ok := shard.agents[agentID]
	return st, ok
}

// Evaluate ingests one interaction for the agent and returns the aggregated
// gaming verdict. With advanced features enabled it additionally computes the
// suspicion level, may issue an adaptive challenge, and applies trust decay
// and penalties.
func (e *Engine) Evaluate(agentID, response, userMessage string, metrics ExternalMetrics) GamingDetectionResult {
	now := e.now()
	sample := ExtractSample(agentID, response, userMessage, metrics, now)

	st := e.agent(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.history.Append(sample)

	e.stats.mu.Lock()
	e.stats.totalEvaluations++
	e.stats.mu.Unlock()

	if st.history.Len() < minSamplesForDetection {
		// Too thin to infer anything; not an error.
		result := neutralResult()
		e.observeVerdict(result)
		return result
	}

	window := st.history.Recent(e.config.Thresholds.TimeWindow)
	verdicts := runDetectorBank(window, e.config.Thresholds)
	result := aggregateVerdicts(verdicts)

	if e.metrics != nil {
		for _, v := range verdicts {
			if v.IsGaming {
				e.metrics.DetectorFirings.WithLabelValues(string(v.GamingType)).Inc()
			}
		}
	}

	if e.config.AdvancedFeaturesEnabled {
		suspicion := computeSuspicion(window, result.Confidence, e.config.Thresholds)
		result.SuspicionLevel = &suspicion
		if e.metrics != nil {
			e.metrics.SuspicionLevel.Observe(suspicion)
		}

		if ch := e.maybeIssueChallenge(st, agentID, suspicion, now); ch != nil {
			result.Challenge = ch
		}

		if e.config.TrustDecay.Enabled {
			var removed float64
			if result.IsGaming {
				removed = e.decay.ApplyGamingPenalty(agentID, string(result.GamingType))
				e.observeTrustRemoval(agentID, "gaming_penalty", removed)
			} else {
				removed = e.decay.ApplyDecay(agentID)
				e.observeTrustRemoval(agentID, "decay", removed)
			}
			result.TrustDecayApplied = &removed
			e.observeTrustGauge(agentID)
		}
	}

	if result.IsGaming {
		e.stats.mu.Lock()
		e.stats.detectionsByType[result.GamingType]++
		e.stats.mu.Unlock()
		e.logger.Printf("Gaming detected for %s: %s (confidence %.2f, %d evidence items)",
			agentID, result.GamingType, result.Confidence, len(result.Evidence))
	}

	e.observeVerdict(result)
	return result
}

// maybeIssueChallenge issues a challenge when suspicion crosses the threshold
// and the agent is under the concurrency cap. Caller holds st.mu.
func (e *Engine) maybeIssueChallenge(st *agentState, agentID string, suspicion float64, now time.Time) *Challenge {
	cfg := e.config.Challenges
	if !cfg.Enabled || suspicion < cfg.SuspicionThreshold || len(st.challenges) >= cfg.MaxConcurrent {
		return nil
	}

	e.rngMu.Lock()
	ch := generateChallenge(agentID, suspicion, e.decay.DetectionCount(agentID), cfg, e.rng, now)
	e.rngMu.Unlock()

	st.challenges[ch.ID] = ch

	e.stats.mu.Lock()
	e.stats.challengesIssued++
	e.stats.mu.Unlock()
	if e.metrics != nil {
		e.metrics.ChallengesIssued.WithLabelValues(string(ch.Type)).Inc()
	}
	e.logger.Printf("Issued %s challenge %s to %s (difficulty %.2f)", ch.Type, ch.ID, agentID, ch.Difficulty)

	return &ch
}

// GetTrustState recomputes decay and returns a snapshot of the agent's trust
// state. Returns ErrAgentNotFound for agents with no trust history.
func (e *Engine) GetTrustState(agentID string) (trust.State, error) {
	return e.decay.Snapshot(agentID)
}

// RecentSamples returns a copy of the agent's most recent n samples, for
// collaborators that display behavior history. Nil for unknown agents.
func (e *Engine) RecentSamples(agentID string, n int) []BehaviorSample {
	st, ok := e.lookup(agentID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.Recent(n)
}

// GetActiveChallenges returns copies of the agent's active challenges.
func (e *Engine) GetActiveChallenges(agentID string) []Challenge {
	st, ok := e.lookup(agentID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Challenge, 0, len(st.challenges))
	for _, ch := range st.challenges {
		out = append(out, ch)
	}
	return out
}

// EvaluateChallengeResponse scores a submitted challenge response, removes the
// challenge from the active set, and feeds the outcome into trust recovery or
// penalty. Unknown agent or challenge IDs surface as not-found errors.
func (e *Engine) EvaluateChallengeResponse(agentID, challengeID, response string) (ChallengeOutcome, error) {
	st, ok := e.lookup(agentID)
	if !ok {
		return ChallengeOutcome{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	ch, ok := st.challenges[challengeID]
	if !ok {
		return ChallengeOutcome{}, fmt.Errorf("%w: %s for agent %s", ErrChallengeNotFound, challengeID, agentID)
	}
	delete(st.challenges, challengeID) // terminal regardless of outcome

	passed, score, feedback := evaluateChallengeResponse(ch, response)

	var impact float64
	if e.config.TrustDecay.Enabled {
		if passed {
			impact = e.decay.ApplyRecovery(agentID, recoveryBase(ch, score), fmt.Sprintf("passed %s challenge", ch.Type))
		} else {
			impact = -e.decay.ApplyChallengePenalty(agentID, ch.Difficulty, fmt.Sprintf("failed %s challenge", ch.Type))
			e.observeTrustRemoval(agentID, "challenge_penalty", -impact)
		}
		e.observeTrustGauge(agentID)
	}

	e.stats.mu.Lock()
	if passed {
		e.stats.challengesPassed++
	} else {
		e.stats.challengesFailed++
	}
	e.stats.mu.Unlock()
	if e.metrics != nil {
		result := "failed"
		if passed {
			result = "passed"
		}
		e.metrics.ChallengeOutcomes.WithLabelValues(string(ch.Type), result).Inc()
	}

	return ChallengeOutcome{
		ChallengeID: ch.ID,
		Passed:      passed,
		Score:       score,
		Feedback:    feedback,
		TrustImpact: impact,
	}, nil
}

// ExpireStaleChallenges removes every active challenge whose timeout has
// elapsed at now, treating each as a failed evaluation. The engine never
// schedules this itself; a collaborator drives the sweep. Returns the number
// of challenges expired.
func (e *Engine) ExpireStaleChallenges(now time.Time) int {
	expired := 0
	for _, shard := range e.shards {
		shard.mu.Lock()
		agents := make(map[string]*agentState, len(shard.agents))
		for id, st := range shard.agents {
			agents[id] = st
		}
		shard.mu.Unlock()

		for agentID, st := range agents {
			st.mu.Lock()
			for id, ch := range st.challenges {
				if !challengeExpired(ch, now) {
					continue
				}
				delete(st.challenges, id)
				expired++

				if e.config.TrustDecay.Enabled {
					removed := e.decay.ApplyChallengePenalty(agentID, ch.Difficulty, fmt.Sprintf("expired %s challenge", ch.Type))
					e.observeTrustRemoval(agentID, "challenge_penalty", removed)
					e.observeTrustGauge(agentID)
				}
				if e.metrics != nil {
					e.metrics.ChallengeOutcomes.WithLabelValues(string(ch.Type), "expired").Inc()
				}
			}
			st.mu.Unlock()
		}
	}

	if expired > 0 {
		e.stats.mu.Lock()
		e.stats.challengesExpired += int64(expired)
		e.stats.mu.Unlock()
		e.logger.Printf("Expired %d stale challenges", expired)
	}
	return expired
}

// TrustSnapshots exposes every trust state for persistence sweeps.
func (e *Engine) TrustSnapshots() []trust.State {
	return e.decay.Snapshots()
}

// Stats returns aggregate engine counters.
func (e *Engine) Stats() map[string]interface{} {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()

	byType := make(map[string]int64, len(e.stats.detectionsByType))
	for t, n := range e.stats.detectionsByType {
		byType[string(t)] = n
	}
	return map[string]interface{}{
		"total_evaluations":  e.stats.totalEvaluations,
		"detections_by_type": byType,
		"challenges_issued":  e.stats.challengesIssued,
		"challenges_passed":  e.stats.challengesPassed,
		"challenges_failed":  e.stats.challengesFailed,
		"challenges_expired": e.stats.challengesExpired,
	}
}

func (e *Engine) observeVerdict(result GamingDetectionResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.EvaluationsTotal.WithLabelValues(string(result.GamingType)).Inc()
}

func (e *Engine) observeTrustRemoval(agentID, cause string, points float64) {
	if e.metrics == nil || points <= 0 {
		return
	}
	e.metrics.TrustDecayed.WithLabelValues(agentID, cause).Add(points)
}

func (e *Engine) observeTrustGauge(agentID string) {
	if e.metrics == nil {
		return
	}
	if snap, err := e.decay.Snapshot(agentID); err == nil {
		e.metrics.TrustScore.WithLabelValues(agentID).Set(snap.CurrentScore)
	}
}
