package antigaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the anti-gaming engine. The engine
// accepts a nil *Metrics and skips instrumentation (unit tests run without a
// registry).
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal *prometheus.CounterVec
	DetectorFirings  *prometheus.CounterVec
	SuspicionLevel   prometheus.Histogram

	// Challenge metrics
	ChallengesIssued  *prometheus.CounterVec
	ChallengeOutcomes *prometheus.CounterVec

	// Trust metrics
	TrustScore   *prometheus.GaugeVec
	TrustDecayed *prometheus.CounterVec
}

// NewMetrics creates and registers all engine metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigaming_evaluations_total",
				Help: "Total behavior evaluations processed",
			},
			[]string{"verdict"}, // verdict: none, trust_manipulation, ...
		),

		DetectorFirings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigaming_detector_firings_total",
				Help: "Detector firings by gaming type",
			},
			[]string{"detector"},
		),

		SuspicionLevel: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "antigaming_suspicion_level",
				Help:    "Distribution of computed suspicion levels",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),

		ChallengesIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigaming_challenges_issued_total",
				Help: "Adaptive challenges issued by type",
			},
			[]string{"type"},
		),

		ChallengeOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigaming_challenge_outcomes_total",
				Help: "Challenge evaluations by outcome",
			},
			[]string{"type", "result"}, // result: passed, failed, expired
		),

		TrustScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "antigaming_trust_score",
				Help: "Current public trust score per agent",
			},
			[]string{"agent_id"},
		),

		TrustDecayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "antigaming_trust_decayed_points_total",
				Help: "Trust points removed by decay and penalties",
			},
			[]string{"agent_id", "cause"}, // cause: decay, gaming_penalty, challenge_penalty
		),
	}
}
