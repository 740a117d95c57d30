package trust

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// ============================================================================
// TRUST DECAY ENGINE - Time decay, escalating penalties, challenge recovery
// ============================================================================

// ErrAgentNotFound is returned when no trust state exists for an agent.
var ErrAgentNotFound = fmt.Errorf("trust state not found")

// DecayConfig holds the trust decay parameters.
type DecayConfig struct {
	Enabled bool `yaml:"enabled"`

	// BaseDecayRate is the per-day fractional decay applied to the current
	// score (e.g. 0.01 = 1% per day of inactivity).
	BaseDecayRate float64 `yaml:"base_decay_rate"`

	// GamingPenaltyMultiplier is the base multiplier for the immediate
	// penalty on a detected gaming event.
	GamingPenaltyMultiplier float64 `yaml:"gaming_penalty_multiplier"`

	// MaxDecayRate caps how fast repeat offenders can decay.
	MaxDecayRate float64 `yaml:"max_decay_rate"`

	// RecoveryDifficulty divides challenge-pass recovery increments; raised
	// multiplicatively on each detection, capped at 20.
	RecoveryDifficulty float64 `yaml:"recovery_difficulty"`
}

// DefaultDecayConfig returns the production defaults.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		Enabled:                 true,
		BaseDecayRate:           0.01,
		GamingPenaltyMultiplier: 1.0,
		MaxDecayRate:            0.25,
		RecoveryDifficulty:      1.0,
	}
}

// HistoryEntry records one trust mutation for auditability.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Event     string    `json:"event"` // "decay", "gaming_penalty", "challenge_recovery", "challenge_penalty"
	Details   string    `json:"details"`
}

// State is one agent's trust state. Snapshots returned to callers are copies;
// the engine owns the only mutable instance.
type State struct {
	AgentID              string         `json:"agent_id"`
	CurrentScore         float64        `json:"current_score"` // 0-100
	DecayRate            float64        `json:"decay_rate"`
	LastDecayUpdate      time.Time      `json:"last_decay_update"`
	GamingDetectionCount int            `json:"gaming_detection_count"`
	RecoveryDifficulty   float64        `json:"recovery_difficulty"`
	History              []HistoryEntry `json:"history"`
}

// DecayEngine tracks per-agent trust states. States are created lazily at a
// score of 100 and never deleted during the process lifetime.
type DecayEngine struct {
	mu     sync.Mutex
	config DecayConfig
	states map[string]*State
	now    func() time.Time
	logger *log.Logger
}

// NewDecayEngine creates a decay engine. A nil clock defaults to time.Now.
func NewDecayEngine(config DecayConfig, clock func() time.Time) *DecayEngine {
	if clock == nil {
		clock = time.Now
	}
	return &DecayEngine{
		config: config,
		states: make(map[string]*State),
		now:    clock,
		logger: log.New(log.Writer(), "[TrustDecay] ", log.LstdFlags),
	}
}

// touch returns the agent's state, creating it on first contact.
func (de *DecayEngine) touch(agentID string) *State {
	st, ok := de.states[agentID]
	if !ok {
		st = &State{
			AgentID:            agentID,
			CurrentScore:       100,
			DecayRate:          de.config.BaseDecayRate,
			LastDecayUpdate:    de.now(),
			RecoveryDifficulty: de.config.RecoveryDifficulty,
		}
		de.states[agentID] = st
	}
	return st
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (de *DecayEngine) record(st *State, event, details string) {
	st.History = append(st.History, HistoryEntry{
		Timestamp: de.now(),
		Score:     st.CurrentScore,
		Event:     event,
		Details:   details,
	})
}

// applyDecayLocked applies elapsed-time decay. Caller holds de.mu.
func (de *DecayEngine) applyDecayLocked(st *State) float64 {
	now := de.now()
	days := now.Sub(st.LastDecayUpdate).Hours() / 24
	st.LastDecayUpdate = now
	if days <= 0 {
		return 0
	}

	amount := st.CurrentScore * st.DecayRate * days
	if amount == 0 {
		return 0
	}
	st.CurrentScore = clampScore(st.CurrentScore - amount)
	de.record(st, "decay", fmt.Sprintf("%.4f points over %.2f days at rate %.4f", amount, days, st.DecayRate))
	return amount
}

// ApplyDecay applies time-based decay for the agent and returns the amount
// removed. Creates the state on first touch.
func (de *DecayEngine) ApplyDecay(agentID string) float64 {
	if !de.config.Enabled {
		return 0
	}
	de.mu.Lock()
	defer de.mu.Unlock()
	return de.applyDecayLocked(de.touch(agentID))
}

// ApplyGamingPenalty registers a gaming detection: applies any pending decay,
// then an immediate penalty that escalates exponentially with the agent's
// detection count, raises the decay rate toward MaxDecayRate, and raises the
// recovery difficulty toward its cap. Returns the total score removed.
func (de *DecayEngine) ApplyGamingPenalty(agentID string, gamingType string) float64 {
	if !de.config.Enabled {
		return 0
	}
	de.mu.Lock()
	defer de.mu.Unlock()

	st := de.touch(agentID)
	total := de.applyDecayLocked(st)

	st.GamingDetectionCount++
	count := st.GamingDetectionCount

	multiplier := math.Min(de.config.GamingPenaltyMultiplier*math.Pow(1.5, float64(count-1)), 10)
	penalty := 10 * multiplier

	st.CurrentScore = clampScore(st.CurrentScore - penalty)
	st.DecayRate = math.Min(de.config.BaseDecayRate*multiplier, de.config.MaxDecayRate)
	st.RecoveryDifficulty = math.Min(st.RecoveryDifficulty*math.Pow(1.2, float64(count)), 20)

	de.record(st, "gaming_penalty",
		fmt.Sprintf("%s detection #%d: -%.1f points (multiplier %.2f)", gamingType, count, penalty, multiplier))
	de.logger.Printf("Penalized %s for %s (detection #%d): -%.1f → %.1f",
		agentID, gamingType, count, penalty, st.CurrentScore)

	return total + penalty
}

// ApplyRecovery credits a passed challenge. The increment is scaled inversely
// by the agent's recovery difficulty, so repeat offenders claw back slowly.
// Returns the score actually restored.
func (de *DecayEngine) ApplyRecovery(agentID string, baseAmount float64, reason string) float64 {
	if !de.config.Enabled {
		return 0
	}
	de.mu.Lock()
	defer de.mu.Unlock()

	st := de.touch(agentID)
	difficulty := st.RecoveryDifficulty
	if difficulty < 1 {
		difficulty = 1
	}
	amount := baseAmount / difficulty

	before := st.CurrentScore
	st.CurrentScore = clampScore(st.CurrentScore + amount)
	restored := st.CurrentScore - before

	de.record(st, "challenge_recovery", fmt.Sprintf("+%.2f points (%s)", restored, reason))
	return restored
}

// ApplyChallengePenalty deducts for a failed or expired challenge, scaled by
// the challenge difficulty. Returns the score removed.
func (de *DecayEngine) ApplyChallengePenalty(agentID string, difficulty float64, reason string) float64 {
	if !de.config.Enabled {
		return 0
	}
	de.mu.Lock()
	defer de.mu.Unlock()

	st := de.touch(agentID)
	penalty := 5 * difficulty
	before := st.CurrentScore
	st.CurrentScore = clampScore(st.CurrentScore - penalty)

	de.record(st, "challenge_penalty", fmt.Sprintf("-%.2f points (%s)", before-st.CurrentScore, reason))
	return before - st.CurrentScore
}

// DetectionCount returns the agent's gaming detection count (0 if unknown).
func (de *DecayEngine) DetectionCount(agentID string) int {
	de.mu.Lock()
	defer de.mu.Unlock()
	if st, ok := de.states[agentID]; ok {
		return st.GamingDetectionCount
	}
	return 0
}

// Snapshot recomputes decay and returns a copy of the agent's state.
func (de *DecayEngine) Snapshot(agentID string) (State, error) {
	de.mu.Lock()
	defer de.mu.Unlock()

	st, ok := de.states[agentID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if de.config.Enabled {
		de.applyDecayLocked(st)
	}

	snap := *st
	snap.History = make([]HistoryEntry, len(st.History))
	copy(snap.History, st.History)
	return snap, nil
}

// Snapshots returns copies of every tracked state, for persistence sweeps.
func (de *DecayEngine) Snapshots() []State {
	de.mu.Lock()
	defer de.mu.Unlock()

	out := make([]State, 0, len(de.states))
	for _, st := range de.states {
		snap := *st
		snap.History = make([]HistoryEntry, len(st.History))
		copy(snap.History, st.History)
		out = append(out, snap)
	}
	return out
}
