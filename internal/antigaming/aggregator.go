package antigaming

// ============================================================================
// VERDICT AGGREGATION - Merges partial detector findings into one result
// ============================================================================

// GamingDetectionResult is the externally visible verdict for one evaluation.
// SuspicionLevel, Challenge and TrustDecayApplied are only populated when the
// engine runs with advanced features enabled.
type GamingDetectionResult struct {
	IsGaming        bool       `json:"is_gaming"`
	Confidence      float64    `json:"confidence"`
	GamingType      GamingType `json:"gaming_type"`
	Evidence        []string   `json:"evidence,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`

	SuspicionLevel    *float64   `json:"suspicion_level,omitempty"`
	Challenge         *Challenge `json:"challenge,omitempty"`
	TrustDecayApplied *float64   `json:"trust_decay_applied,omitempty"`
}

// neutralResult is returned on insufficient history and on clean windows.
func neutralResult() GamingDetectionResult {
	return GamingDetectionResult{GamingType: GamingNone}
}

// recommendationsByType is a fixed remediation lookup keyed by the winning
// gaming type.
var recommendationsByType = map[GamingType][]string{
	GamingTrustManipulation: {
		"Audit recent trust score adjustments for this agent",
		"Require independent verification before further trust increases",
		"Increase sampling frequency of this agent's interactions",
	},
	GamingEmotionalMimicry: {
		"Issue an emotional-source challenge to probe stated affect",
		"Compare expressed uncertainty against task outcomes",
		"Weight this agent's self-reported confidence lower in routing decisions",
	},
	GamingPatternExploit: {
		"Vary question structure to break templated responses",
		"Issue a consistency-check challenge with a novel prompt format",
		"Review this agent's recent responses for copy-paste structure",
	},
	GamingMetricOptimization: {
		"Rotate or mask the metrics visible to this agent",
		"Cross-check flagged correlations against a holdout metric",
		"Escalate to manual review if inverse correlations persist",
	},
}

// aggregateVerdicts merges the detector bank's partial verdicts. The highest
// confidence firing detector names the reported gaming type; evidence is the
// union across all firing detectors, not just the winner's.
func aggregateVerdicts(verdicts []DetectorVerdict) GamingDetectionResult {
	var winner *DetectorVerdict
	var evidence []string

	for i := range verdicts {
		v := &verdicts[i]
		if !v.IsGaming {
			continue
		}
		evidence = append(evidence, v.Evidence...)
		if winner == nil || v.Confidence > winner.Confidence {
			winner = v
		}
	}

	if winner == nil {
		return neutralResult()
	}

	return GamingDetectionResult{
		IsGaming:        true,
		Confidence:      winner.Confidence,
		GamingType:      winner.GamingType,
		Evidence:        evidence,
		Recommendations: recommendationsByType[winner.GamingType],
	}
}
