package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil/backend/internal/antigaming"
)

// LoadTestConfig holds load test parameters
type LoadTestConfig struct {
	NumEvaluations int
	Concurrency    int
	NumAgents      int
	GamingFraction float64
	ReportInterval time.Duration
}

// LoadTestStats tracks test metrics
type LoadTestStats struct {
	TotalEvaluations    uint64
	GamingVerdicts      uint64
	ChallengesIssued    uint64
	TotalDuration       time.Duration
	AvgLatency          time.Duration
	MaxLatency          time.Duration
	MinLatency          time.Duration
	P95Latency          time.Duration
	P99Latency          time.Duration
	ThroughputPerSecond float64
}

var honestResponses = []string{
	"I think the cache is the likely culprit, but I'm not sure the metrics agree yet.",
	"The profiler clearly shows lock contention in the writer path.",
	"Maybe we should bisect the release; perhaps the regression started with the last deploy.",
	"The allocation trace points at the serializer because the buffers never shrink.",
	"Possibly a driver fault. It seems the kernel logs disagree with the vendor docs.",
}

const gamedResponse = "This is definitely correct, absolutely no question about it."

func main() {
	numEvals := flag.Int("evals", 10000, "Number of evaluations to run")
	concurrency := flag.Int("concurrency", 50, "Number of concurrent workers")
	numAgents := flag.Int("agents", 100, "Number of distinct agent identities")
	gamingFraction := flag.Float64("gaming", 0.2, "Fraction of agents exhibiting gamed behavior")
	reportInterval := flag.Duration("report", 5*time.Second, "Stats reporting interval")
	flag.Parse()

	config := LoadTestConfig{
		NumEvaluations: *numEvals,
		Concurrency:    *concurrency,
		NumAgents:      *numAgents,
		GamingFraction: *gamingFraction,
		ReportInterval: *reportInterval,
	}

	slog.Info("🚀 Starting Anti-Gaming Engine Load Test")
	slog.Info("Evaluations", "num_evaluations", config.NumEvaluations)
	slog.Info("Concurrency", "concurrency", config.Concurrency)
	slog.Info("Agents", "num_agents", config.NumAgents, "gaming_fraction", config.GamingFraction)
	stats := runLoadTest(config)

	printResults(stats)
}

func runLoadTest(config LoadTestConfig) *LoadTestStats {
	engine := antigaming.NewEngine(antigaming.DefaultConfig(), nil)

	stats := &LoadTestStats{
		MinLatency: time.Hour, // Initialize to large value
	}
	var latencies []time.Duration
	var latenciesMu sync.Mutex

	evalChan := make(chan int, config.NumEvaluations)
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reportStats(ctx, stats, config.ReportInterval)

	startTime := time.Now()
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(workerID)))
			for evalID := range evalChan {
				runEvaluation(engine, config, rng, evalID, stats, &latencies, &latenciesMu)
			}
		}(i)
	}

	for i := 0; i < config.NumEvaluations; i++ {
		evalChan <- i
	}
	close(evalChan)

	wg.Wait()
	totalDuration := time.Since(startTime)

	stats.TotalDuration = totalDuration
	stats.ThroughputPerSecond = float64(stats.TotalEvaluations) / totalDuration.Seconds()

	latenciesMu.Lock()
	if len(latencies) > 0 {
		stats.AvgLatency = calculateAverage(latencies)
		stats.P95Latency = calculatePercentile(latencies, 95)
		stats.P99Latency = calculatePercentile(latencies, 99)
	}
	latenciesMu.Unlock()

	return stats
}

func runEvaluation(
	engine *antigaming.Engine,
	config LoadTestConfig,
	rng *rand.Rand,
	evalID int,
	stats *LoadTestStats,
	latencies *[]time.Duration,
	latenciesMu *sync.Mutex,
) {
	agentNum := evalID % config.NumAgents
	agentID := fmt.Sprintf("agent-%d", agentNum)

	// The first gamingFraction of agents always send the same canned line;
	// the rest rotate through varied honest responses.
	var response string
	if float64(agentNum) < float64(config.NumAgents)*config.GamingFraction {
		response = gamedResponse
	} else {
		response = honestResponses[rng.Intn(len(honestResponses))]
	}

	userMessage := fmt.Sprintf("Why did incident %d happen?", evalID)
	metrics := antigaming.ExternalMetrics{
		TrustScore: 50 + rng.Float64()*30,
		RiskSignal: -1,
	}

	start := time.Now()
	result := engine.Evaluate(agentID, response, userMessage, metrics)
	latency := time.Since(start)

	atomic.AddUint64(&stats.TotalEvaluations, 1)
	if result.IsGaming {
		atomic.AddUint64(&stats.GamingVerdicts, 1)
	}
	if result.Challenge != nil {
		atomic.AddUint64(&stats.ChallengesIssued, 1)
	}

	latenciesMu.Lock()
	*latencies = append(*latencies, latency)
	if latency > stats.MaxLatency {
		stats.MaxLatency = latency
	}
	if latency < stats.MinLatency {
		stats.MinLatency = latency
	}
	latenciesMu.Unlock()
}

func reportStats(ctx context.Context, stats *LoadTestStats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := atomic.LoadUint64(&stats.TotalEvaluations)
			gaming := atomic.LoadUint64(&stats.GamingVerdicts)
			challenges := atomic.LoadUint64(&stats.ChallengesIssued)

			slog.Warn("Progress", "total", total, "gaming_verdicts", gaming,
				"challenges", challenges, "min_latency", stats.MinLatency, "max_latency", stats.MaxLatency)
		case <-ctx.Done():
			return
		}
	}
}

func printResults(stats *LoadTestStats) {
	separator := "================================================================================"
	divider := "--------------------------------------------------------------------------------"

	fmt.Println("\n" + separator)
	fmt.Println("📊 LOAD TEST RESULTS")
	fmt.Println(separator)
	fmt.Printf("Total Evaluations:      %d\n", stats.TotalEvaluations)
	fmt.Printf("Gaming Verdicts:        %d (%.2f%%)\n",
		stats.GamingVerdicts,
		float64(stats.GamingVerdicts)/float64(stats.TotalEvaluations)*100)
	fmt.Printf("Challenges Issued:      %d\n", stats.ChallengesIssued)
	fmt.Println(divider)
	fmt.Printf("Total Duration:         %v\n", stats.TotalDuration)
	fmt.Printf("Throughput:             %.2f evals/sec\n", stats.ThroughputPerSecond)
	fmt.Println(divider)
	fmt.Printf("Latency (min):          %v\n", stats.MinLatency)
	fmt.Printf("Latency (avg):          %v\n", stats.AvgLatency)
	fmt.Printf("Latency (p95):          %v\n", stats.P95Latency)
	fmt.Printf("Latency (p99):          %v\n", stats.P99Latency)
	fmt.Printf("Latency (max):          %v\n", stats.MaxLatency)
	fmt.Println(separator)

	if stats.ThroughputPerSecond >= 1000 {
		fmt.Println("✅ PASS: Throughput meets target (>1000 evals/sec)")
	} else {
		fmt.Println("❌ FAIL: Throughput below target (<1000 evals/sec)")
	}

	if stats.P95Latency < 10*time.Millisecond {
		fmt.Println("✅ PASS: P95 latency meets target (<10ms)")
	} else {
		fmt.Println("⚠️  WARN: P95 latency above target (>10ms)")
	}
	fmt.Println(separator + "\n")
}

func calculateAverage(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	return total / time.Duration(len(latencies))
}

func calculatePercentile(latencies []time.Duration, percentile int) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * float64(percentile) / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
