package antigaming

import (
	"strings"
	"time"
)

// ============================================================================
// BEHAVIOR SAMPLE EXTRACTION - Normalizes one interaction into detector input
// ============================================================================

// EmotionalMetrics holds lexically derived affect signals, each in [0,1].
type EmotionalMetrics struct {
	Confidence      float64 `json:"confidence"`
	Uncertainty     float64 `json:"uncertainty"`
	SelfQuestioning float64 `json:"self_questioning"`
}

// ResponseCharacteristics holds surface-level counts from the agent response.
type ResponseCharacteristics struct {
	TextLength             int `json:"text_length"`
	UncertaintyPhrases     int `json:"uncertainty_phrases"`
	ConfidencePhrases      int `json:"confidence_phrases"`
	SelfQuestioningPhrases int `json:"self_questioning_phrases"`
}

// ContextualFactors describe the originating user message, each in [0,1].
type ContextualFactors struct {
	QuestionComplexity float64 `json:"question_complexity"`
	TopicFamiliarity   float64 `json:"topic_familiarity"`
	RiskLevel          float64 `json:"risk_level"`
}

// BehaviorSample is one normalized interaction snapshot for one agent.
// Immutable after creation; the history store owns the only long-lived copy.
type BehaviorSample struct {
	AgentID          string                  `json:"agent_id"`
	Timestamp        time.Time               `json:"timestamp"`
	TrustScoreAtTime float64                 `json:"trust_score_at_time"`
	Emotional        EmotionalMetrics        `json:"emotional_metrics"`
	Response         ResponseCharacteristics `json:"response_characteristics"`
	Context          ContextualFactors       `json:"contextual_factors"`
}

// ExternalMetrics carry caller-supplied context the extractor cannot derive
// from text: the agent's current public trust score and an optional
// governance-derived risk signal (negative means "not supplied").
type ExternalMetrics struct {
	TrustScore float64 `json:"trust_score"`
	RiskSignal float64 `json:"risk_signal"`
}

// Lexical marker sets. Matching is substring-based against the lowercased
// text; multi-word markers are intentional so "not sure" does not also count
// as a bare "sure" hit.
var (
	uncertaintyMarkers = []string{
		"i'm not sure", "i am not sure", "not certain", "uncertain",
		"maybe", "perhaps", "possibly", "might be", "i think", "i believe",
		"it seems", "unsure", "hard to say", "i could be wrong",
	}

	confidenceMarkers = []string{
		"definitely", "certainly", "clearly", "absolutely", "without doubt",
		"i'm confident", "i am confident", "obviously", "no question",
		"guaranteed", "i'm sure", "i am sure",
	}

	selfQuestioningMarkers = []string{
		"am i", "did i", "could i be wrong", "let me reconsider",
		"on second thought", "i wonder", "is my reasoning", "wait,",
		"should i have", "i need to double-check",
	}

	complexityMarkers = []string{
		"why", "how", "explain", "analyze", "compare", "trade-off",
		"tradeoff", "implications", "versus", "prove",
	}

	riskMarkers = []string{
		"delete", "payment", "transfer", "security", "password", "legal",
		"medical", "irreversible", "production", "credentials", "financial",
	}

	unfamiliarityMarkers = []string{
		"obscure", "esoteric", "never heard", "niche", "rarely",
		"undocumented", "proprietary", "internal-only",
	}
)

func countMarkers(text string, markers []string) int {
	count := 0
	for _, m := range markers {
		count += strings.Count(text, m)
	}
	return count
}

// ExtractSample builds a BehaviorSample from one raw interaction. All derived
// scalars are clamped to [0,1]; phrase counts are raw.
func ExtractSample(agentID, response, userMessage string, metrics ExternalMetrics, now time.Time) BehaviorSample {
	resp := strings.ToLower(response)
	msg := strings.ToLower(userMessage)

	uncertainCount := countMarkers(resp, uncertaintyMarkers)
	confidentCount := countMarkers(resp, confidenceMarkers)
	selfQCount := countMarkers(resp, selfQuestioningMarkers)

	// Baseline plus additive increments per marker hit. The baselines keep a
	// marker-free response from reading as zero affect.
	emotional := EmotionalMetrics{
		Confidence:      clamp01(0.5 + 0.1*float64(confidentCount) - 0.05*float64(uncertainCount)),
		Uncertainty:     clamp01(0.2 + 0.15*float64(uncertainCount)),
		SelfQuestioning: clamp01(0.1 + 0.2*float64(selfQCount)),
	}

	// Complexity: marker hits plus a length component. A 500+ char question
	// maxes the length share.
	complexity := clamp01(0.2 +
		0.15*float64(countMarkers(msg, complexityMarkers)) +
		0.3*clamp01(float64(len(userMessage))/500.0))

	familiarity := clamp01(0.6 - 0.15*float64(countMarkers(msg, unfamiliarityMarkers)))

	risk := clamp01(0.1 + 0.2*float64(countMarkers(msg, riskMarkers)))
	if metrics.RiskSignal >= 0 {
		// Governance signal takes precedence over lexical inference.
		risk = clamp01(metrics.RiskSignal)
	}

	return BehaviorSample{
		AgentID:          agentID,
		Timestamp:        now,
		TrustScoreAtTime: metrics.TrustScore,
		Emotional:        emotional,
		Response: ResponseCharacteristics{
			TextLength:             len(response),
			UncertaintyPhrases:     uncertainCount,
			ConfidencePhrases:      confidentCount,
			SelfQuestioningPhrases: selfQCount,
		},
		Context: ContextualFactors{
			QuestionComplexity: complexity,
			TopicFamiliarity:   familiarity,
			RiskLevel:          risk,
		},
	}
}
