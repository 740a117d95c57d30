package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigil/backend/internal/antigaming"
	"github.com/vigil/backend/internal/api"
	"github.com/vigil/backend/internal/config"
	"github.com/vigil/backend/internal/infra"
	"github.com/vigil/backend/internal/middleware"
	"github.com/vigil/backend/internal/snapshot"
	"github.com/vigil/backend/internal/websocket"
)

func main() {
	log.Println("🔥 Starting Anti-Gaming Detection Service...")

	// .env is optional; real deployments use the config file.
	_ = godotenv.Load()

	cfgPath := os.Getenv("VIGIL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Printf("Config file %s not loaded (%v), using defaults", cfgPath, err)
		cfg = config.Default()
	}

	// 1. Core engine
	var metrics *antigaming.Metrics
	if cfg.Monitoring.EnableMetrics {
		metrics = antigaming.NewMetrics()
	}
	engine := antigaming.NewEngine(cfg.ToEngineConfig(), metrics)

	// 2. Optional trust snapshot persistence (Redis)
	var store *snapshot.Store
	if cfg.Redis.Enabled {
		adapter, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Redis unavailable, running without snapshot persistence: %v", err)
		} else {
			defer adapter.Close()
			store = snapshot.NewStore(adapter, 0)
		}
	}

	// 3. Optional live verdict stream
	var streamer *websocket.VerdictStreamer
	if cfg.Monitoring.EnableLiveStream {
		streamer = websocket.NewVerdictStreamer()
		go streamer.Run()
	}

	// 4. Collaborator-driven sweeps: the engine never self-schedules.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			engine.ExpireStaleChallenges(time.Now())
		}
	}()
	if store != nil {
		go func() {
			ticker := time.NewTicker(1 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				store.SaveAll(ctx, engine.TrustSnapshots())
				cancel()
			}
		}()
	}

	// 5. REST gateway
	server := api.NewAPIServer(engine, streamer, store)
	if cfg.Server.RateLimit.Enabled {
		server.WithRateLimiter(middleware.NewRateLimiter(middleware.RateLimitConfig{
			MaxEvaluationsPerMinute: cfg.Server.RateLimit.MaxEvaluationsPerMinute,
			BurstSize:               cfg.Server.RateLimit.BurstSize,
		}))
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		port = 8080
	}
	if err := server.Start(port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
