package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigil/backend/internal/antigaming"
	"github.com/vigil/backend/internal/middleware"
	"github.com/vigil/backend/internal/snapshot"
	"github.com/vigil/backend/internal/websocket"
)

// APIServer exposes the anti-gaming engine via REST/JSON for collaborating
// services and the monitoring frontend. Streamer and snapshots are optional;
// nil disables the live stream / persistence side effects.
type APIServer struct {
	engine    *antigaming.Engine
	streamer  *websocket.VerdictStreamer
	snapshots *snapshot.Store
	limiter   *middleware.RateLimiter
}

func NewAPIServer(engine *antigaming.Engine, streamer *websocket.VerdictStreamer, snapshots *snapshot.Store) *APIServer {
	return &APIServer{
		engine:    engine,
		streamer:  streamer,
		snapshots: snapshots,
	}
}

// WithRateLimiter attaches a per-agent rate limiter to the evaluation
// endpoint. Returns the server for chaining.
func (s *APIServer) WithRateLimiter(rl *middleware.RateLimiter) *APIServer {
	s.limiter = rl
	return s
}

func (s *APIServer) Start(port int) error {
	r := s.Router()
	addr := fmt.Sprintf(":%d", port)
	log.Printf("🚀 Anti-gaming API listening on %s", addr)
	return http.ListenAndServe(addr, r)
}

// Router builds the HTTP routing table.
func (s *APIServer) Router() *mux.Router {
	r := mux.NewRouter()

	// CORS Middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// --- Endpoints ---

	evaluate := http.Handler(http.HandlerFunc(s.handleEvaluate))
	if s.limiter != nil {
		evaluate = s.limiter.Middleware(evaluate)
	}
	r.Handle("/api/evaluate", evaluate).Methods("POST")
	r.HandleFunc("/api/trust/{agentId}", s.handleTrustState).Methods("GET")
	r.HandleFunc("/api/challenges/{agentId}", s.handleActiveChallenges).Methods("GET")
	r.HandleFunc("/api/challenges/{agentId}/{challengeId}/respond", s.handleChallengeResponse).Methods("POST")
	r.HandleFunc("/api/challenges/expire", s.handleExpireChallenges).Methods("POST")
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")

	r.Handle("/metrics", promhttp.Handler())

	if s.streamer != nil {
		r.HandleFunc("/ws/verdicts", s.streamer.HandleWebSocket)
	}

	return r
}

// --- Handlers ---

type evaluateRequest struct {
	AgentID     string   `json:"agent_id"`
	Response    string   `json:"response"`
	UserMessage string   `json:"user_message"`
	TrustScore  float64  `json:"trust_score"`
	RiskSignal  *float64 `json:"risk_signal,omitempty"`
}

func (s *APIServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, `{"error":"agent_id is required"}`, http.StatusBadRequest)
		return
	}

	metrics := antigaming.ExternalMetrics{TrustScore: req.TrustScore, RiskSignal: -1}
	if req.RiskSignal != nil {
		metrics.RiskSignal = *req.RiskSignal
	}

	result := s.engine.Evaluate(req.AgentID, req.Response, req.UserMessage, metrics)

	if s.streamer != nil {
		s.streamer.StreamVerdict(req.AgentID, result)
		if state, err := s.engine.GetTrustState(req.AgentID); err == nil {
			s.streamer.StreamTrustUpdate(req.AgentID, state.CurrentScore)
		}
	}
	if s.snapshots != nil {
		if state, err := s.engine.GetTrustState(req.AgentID); err == nil {
			if err := s.snapshots.Save(r.Context(), state); err != nil {
				log.Printf("Snapshot persist failed for %s: %v", req.AgentID, err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *APIServer) handleTrustState(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	agentID := vars["agentId"]

	state, err := s.engine.GetTrustState(agentID)
	if err != nil {
		if errors.Is(err, antigaming.ErrAgentNotFound) {
			http.Error(w, `{"error":"agent not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

func (s *APIServer) handleActiveChallenges(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	challenges := s.engine.GetActiveChallenges(vars["agentId"])
	if challenges == nil {
		challenges = []antigaming.Challenge{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agent_id":   vars["agentId"],
		"challenges": challenges,
	})
}

type challengeResponseRequest struct {
	Response string `json:"response"`
}

func (s *APIServer) handleChallengeResponse(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	agentID := vars["agentId"]
	challengeID := vars["challengeId"]

	var req challengeResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.EvaluateChallengeResponse(agentID, challengeID, req.Response)
	if err != nil {
		if errors.Is(err, antigaming.ErrChallengeNotFound) || errors.Is(err, antigaming.ErrAgentNotFound) {
			http.Error(w, `{"error":"challenge not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if s.streamer != nil {
		s.streamer.StreamChallengeResolved(agentID, outcome)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(outcome)
}

func (s *APIServer) handleExpireChallenges(w http.ResponseWriter, r *http.Request) {
	expired := s.engine.ExpireStaleChallenges(time.Now())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"expired": expired,
	})
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	if s.streamer != nil {
		stats["websocket"] = s.streamer.GetStatistics()
	}
	if s.limiter != nil {
		stats["rate_limiter"] = s.limiter.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
