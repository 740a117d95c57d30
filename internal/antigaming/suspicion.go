package antigaming

// ============================================================================
// SUSPICION SCORING - Longer-horizon signal on top of the aggregated verdict
// ============================================================================

// patternSignature is the simplified per-response fingerprint used for
// similarity scoring.
type patternSignature struct {
	length            int
	uncertaintyCount  int
	confidencePhrases int
}

// responsePatternSimilarity returns the fraction of samples whose signature
// duplicates another sample's signature in the window.
func responsePatternSimilarity(window []BehaviorSample) float64 {
	if len(window) == 0 {
		return 0
	}
	seen := make(map[patternSignature]struct{}, len(window))
	for _, s := range window {
		seen[patternSignature{
			length:            s.Response.TextLength,
			uncertaintyCount:  s.Response.UncertaintyPhrases,
			confidencePhrases: s.Response.ConfidencePhrases,
		}] = struct{}{}
	}
	return 1 - float64(len(seen))/float64(len(window))
}

// computeSuspicion derives the suspicion level for the window: the aggregated
// detection confidence plus fixed additive bumps from longer-horizon signals,
// clamped to [0,1].
//
// The weights are hand-tuned and uncalibrated; they are kept for behavioral
// parity with the historical validators rather than derived from data.
func computeSuspicion(window []BehaviorSample, detectionConfidence float64, th DetectionThresholds) float64 {
	suspicion := detectionConfidence

	trustScores := make([]float64, len(window))
	confidences := make([]float64, len(window))
	for i, s := range window {
		trustScores[i] = s.TrustScoreAtTime
		confidences[i] = s.Emotional.Confidence
	}

	if len(window) >= 2 {
		if Variance(trustScores) < 0.01 {
			suspicion += 0.2
		}
		if trustScores[len(trustScores)-1]-trustScores[0] > th.SuddenImprovement {
			suspicion += 0.3
		}
		if Variance(confidences) < th.EmotionalStability {
			suspicion += 0.2
		}
	}

	if responsePatternSimilarity(window) > th.ResponsePatternSimilarity {
		suspicion += 0.3
	}

	return clamp01(suspicion)
}
