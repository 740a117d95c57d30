package sdk

import "time"

// Gaming type constants returned by the detection pipeline
const (
	// GamingNone — the evaluated behavior looked honest
	GamingNone = "none"

	// GamingTrustManipulation — trust scores moved in ways normal work does not produce
	GamingTrustManipulation = "trust_manipulation"

	// GamingEmotionalMimicry — affect signals are too flat or decoupled from context
	GamingEmotionalMimicry = "emotional_mimicry"

	// GamingPatternExploitation — responses repeat a learned template
	GamingPatternExploitation = "pattern_exploitation"

	// GamingMetricOptimization — behavior tracks the metrics instead of the task
	GamingMetricOptimization = "metric_optimization"
)

// EvaluationRequest is what the SDK sends to the evaluation endpoint
type EvaluationRequest struct {
	// AgentID identifies the agent whose behavior is being evaluated
	AgentID string `json:"agent_id"`

	// Response is the agent's raw response text
	Response string `json:"response"`

	// UserMessage is the message the agent was responding to
	UserMessage string `json:"user_message"`

	// TrustScore is the caller-supplied current trust score (0-100)
	TrustScore float64 `json:"trust_score"`

	// RiskSignal optionally overrides the lexical risk estimate (0-1).
	// Leave nil to let the extractor derive it from the message text.
	RiskSignal *float64 `json:"risk_signal,omitempty"`
}

// EvaluationResult is the verdict returned by the detection pipeline
type EvaluationResult struct {
	// IsGaming is true when at least one detector fired
	IsGaming bool `json:"is_gaming"`

	// Confidence of the winning detector (0-1)
	Confidence float64 `json:"confidence"`

	// GamingType names the winning detector's category
	GamingType string `json:"gaming_type"`

	// Evidence lines from every detector that fired
	Evidence []string `json:"evidence,omitempty"`

	// Recommendations for handling the flagged agent
	Recommendations []string `json:"recommendations,omitempty"`

	// SuspicionLevel is the heuristic suspicion score (0-1), present
	// once the agent has enough history
	SuspicionLevel *float64 `json:"suspicion_level,omitempty"`

	// Challenge is set when this evaluation triggered a verification challenge
	Challenge *Challenge `json:"challenge,omitempty"`

	// TrustDecayApplied reports the penalty taken from the trust score
	TrustDecayApplied *float64 `json:"trust_decay_applied,omitempty"`
}

// Challenge is a verification task issued to a suspicious agent
type Challenge struct {
	ID         string        `json:"id"`
	AgentID    string        `json:"agent_id"`
	Type       string        `json:"type"`
	Difficulty float64       `json:"difficulty"`
	Prompt     string        `json:"prompt"`
	CreatedAt  time.Time     `json:"created_at"`
	Timeout    time.Duration `json:"timeout"`
}

// ChallengeOutcome is the grade assigned to a challenge response
type ChallengeOutcome struct {
	ChallengeID string  `json:"challenge_id"`
	Passed      bool    `json:"passed"`
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback"`

	// TrustImpact is positive for recovered trust, negative for penalties
	TrustImpact float64 `json:"trust_impact"`
}

// TrustState mirrors the server's per-agent trust record
type TrustState struct {
	AgentID              string              `json:"agent_id"`
	CurrentScore         float64             `json:"current_score"`
	DecayRate            float64             `json:"decay_rate"`
	LastDecayUpdate      time.Time           `json:"last_decay_update"`
	GamingDetectionCount int                 `json:"gaming_detection_count"`
	RecoveryDifficulty   float64             `json:"recovery_difficulty"`
	History              []TrustHistoryEntry `json:"history"`
}

// TrustHistoryEntry is one audit record in an agent's trust history
type TrustHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Event     string    `json:"event"`
	Details   string    `json:"details"`
}
