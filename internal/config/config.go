package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vigil/backend/internal/antigaming"
	"github.com/vigil/backend/internal/trust"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Engine     EngineConfig     `yaml:"engine"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port      string          `yaml:"port"`
	Env       string          `yaml:"env"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled                 bool `yaml:"enabled"`
	MaxEvaluationsPerMinute int  `yaml:"max_evaluations_per_minute"`
	BurstSize               int  `yaml:"burst_size"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MonitoringConfig struct {
	EnableLiveStream bool `yaml:"enable_live_stream"`
	EnableMetrics    bool `yaml:"enable_metrics"`
}

type EngineConfig struct {
	AdvancedFeatures bool             `yaml:"advanced_features"`
	HistoryCapacity  int              `yaml:"history_capacity"`
	Detection        DetectionConfig  `yaml:"detection"`
	Challenges       ChallengesConfig `yaml:"challenges"`
	TrustDecay       TrustDecayConfig `yaml:"trust_decay"`
}

// DetectionConfig is the unified detector threshold table. Zero values fall
// back to the reconciled production defaults.
type DetectionConfig struct {
	TimeWindow                int     `yaml:"time_window"`
	SuddenImprovement         float64 `yaml:"sudden_improvement"`
	EmotionalStability        float64 `yaml:"emotional_stability"`
	UncertaintyManipulation   float64 `yaml:"uncertainty_manipulation"`
	PatternConsistency        float64 `yaml:"pattern_consistency"`
	ResponsePatternSimilarity float64 `yaml:"response_pattern_similarity"`
}

type ChallengesConfig struct {
	Enabled            bool    `yaml:"enabled"`
	SuspicionThreshold float64 `yaml:"suspicion_threshold"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	FalsePositiveRate  float64 `yaml:"false_positive_rate"`
	TimeoutMs          int     `yaml:"timeout_ms"`
}

type TrustDecayConfig struct {
	Enabled                 bool    `yaml:"enabled"`
	BaseDecayRate           float64 `yaml:"base_decay_rate"`
	GamingPenaltyMultiplier float64 `yaml:"gaming_penalty_multiplier"`
	MaxDecayRate            float64 `yaml:"max_decay_rate"`
	RecoveryDifficulty      float64 `yaml:"recovery_difficulty"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Engine: EngineConfig{
			AdvancedFeatures: true,
			Challenges:       ChallengesConfig{Enabled: true},
			TrustDecay:       TrustDecayConfig{Enabled: true},
		},
		Monitoring: MonitoringConfig{EnableLiveStream: true, EnableMetrics: true},
	}
}

// ToEngineConfig maps the file representation onto the engine's domain
// config, filling unset numeric fields with production defaults.
func (c *Config) ToEngineConfig() antigaming.Config {
	out := antigaming.DefaultConfig()
	out.AdvancedFeaturesEnabled = c.Engine.AdvancedFeatures

	if c.Engine.HistoryCapacity > 0 {
		out.HistoryCapacity = c.Engine.HistoryCapacity
	}

	d := c.Engine.Detection
	if d.TimeWindow > 0 {
		out.Thresholds.TimeWindow = d.TimeWindow
	}
	if d.SuddenImprovement > 0 {
		out.Thresholds.SuddenImprovement = d.SuddenImprovement
	}
	if d.EmotionalStability > 0 {
		out.Thresholds.EmotionalStability = d.EmotionalStability
	}
	if d.UncertaintyManipulation > 0 {
		out.Thresholds.UncertaintyManipulation = d.UncertaintyManipulation
	}
	if d.PatternConsistency > 0 {
		out.Thresholds.PatternConsistency = d.PatternConsistency
	}
	if d.ResponsePatternSimilarity > 0 {
		out.Thresholds.ResponsePatternSimilarity = d.ResponsePatternSimilarity
	}

	ch := c.Engine.Challenges
	out.Challenges.Enabled = ch.Enabled
	if ch.SuspicionThreshold > 0 {
		out.Challenges.SuspicionThreshold = ch.SuspicionThreshold
	}
	if ch.MaxConcurrent > 0 {
		out.Challenges.MaxConcurrent = ch.MaxConcurrent
	}
	if ch.FalsePositiveRate > 0 {
		out.Challenges.FalsePositiveRate = ch.FalsePositiveRate
	}
	if ch.TimeoutMs > 0 {
		out.Challenges.Timeout = time.Duration(ch.TimeoutMs) * time.Millisecond
	}

	td := c.Engine.TrustDecay
	out.TrustDecay = trust.DecayConfig{
		Enabled:                 td.Enabled,
		BaseDecayRate:           td.BaseDecayRate,
		GamingPenaltyMultiplier: td.GamingPenaltyMultiplier,
		MaxDecayRate:            td.MaxDecayRate,
		RecoveryDifficulty:      td.RecoveryDifficulty,
	}
	defaults := trust.DefaultDecayConfig()
	if out.TrustDecay.BaseDecayRate == 0 {
		out.TrustDecay.BaseDecayRate = defaults.BaseDecayRate
	}
	if out.TrustDecay.GamingPenaltyMultiplier == 0 {
		out.TrustDecay.GamingPenaltyMultiplier = defaults.GamingPenaltyMultiplier
	}
	if out.TrustDecay.MaxDecayRate == 0 {
		out.TrustDecay.MaxDecayRate = defaults.MaxDecayRate
	}
	if out.TrustDecay.RecoveryDifficulty == 0 {
		out.TrustDecay.RecoveryDifficulty = defaults.RecoveryDifficulty
	}

	return out
}
