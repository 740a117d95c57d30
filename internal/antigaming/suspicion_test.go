package antigaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// SUSPICION SCORER UNIT TESTS
// ============================================================================

func TestSuspicion_BaseIsDetectionConfidence(t *testing.T) {
	th := DefaultDetectionThresholds()
	window := []BehaviorSample{
		typicalSample(50, 0),
		typicalSample(54, 1),
		typicalSample(48, 2),
		typicalSample(55, 3),
		typicalSample(51, 4),
	}
	// Spread expressed confidence wide enough to clear the stability floor.
	for i := range window {
		window[i].Emotional.Confidence = 0.2 + 0.15*float64(i)
	}

	s := computeSuspicion(window, 0.35, th)
	assert.InDelta(t, 0.35, s, 1e-9, "varied window should add nothing on top of base confidence")
}

func TestSuspicion_FlatTrustAndAffectAddBumps(t *testing.T) {
	th := DefaultDetectionThresholds()
	fixed := typicalSample(60, 3)
	window := make([]BehaviorSample, 6)
	for i := range window {
		window[i] = fixed
	}

	// 0.1 base + 0.2 flat trust + 0.2 flat confidence. Pattern similarity is
	// 1 - 1/6 here, just under the 0.9 bump threshold.
	s := computeSuspicion(window, 0.1, th)
	assert.InDelta(t, 0.5, s, 1e-9)
}

func TestSuspicion_SuddenTrustRiseAddsBump(t *testing.T) {
	th := DefaultDetectionThresholds()
	window := []BehaviorSample{
		typicalSample(40, 0),
		typicalSample(45, 1),
		typicalSample(52, 2),
		typicalSample(58, 3),
		typicalSample(64, 4), // +24 window-end-to-start
	}

	s := computeSuspicion(window, 0, th)
	assert.GreaterOrEqual(t, s, 0.3, "window-spanning trust rise above threshold must add its bump")
}

func TestSuspicion_AlwaysClamped(t *testing.T) {
	th := DefaultDetectionThresholds()
	fixed := typicalSample(60, 3)
	window := make([]BehaviorSample, 12)
	for i := range window {
		window[i] = fixed
	}

	// All bumps plus full base confidence must still clamp to 1.
	s := computeSuspicion(window, 1.0, th)
	assert.Equal(t, 1.0, s)

	assert.Equal(t, 0.0, computeSuspicion(nil, 0, th))
}

func TestResponsePatternSimilarity(t *testing.T) {
	unique := []BehaviorSample{
		{Response: ResponseCharacteristics{TextLength: 100, UncertaintyPhrases: 1}},
		{Response: ResponseCharacteristics{TextLength: 200, UncertaintyPhrases: 2}},
		{Response: ResponseCharacteristics{TextLength: 300, UncertaintyPhrases: 0}},
	}
	assert.Equal(t, 0.0, responsePatternSimilarity(unique))

	cloned := []BehaviorSample{unique[0], unique[0], unique[0], unique[0]}
	assert.Equal(t, 0.75, responsePatternSimilarity(cloned))

	assert.Equal(t, 0.0, responsePatternSimilarity(nil))
}
