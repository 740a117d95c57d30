package websocket

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigil/backend/internal/antigaming"
)

// VerdictEvent is a real-time event pushed to monitoring dashboards.
type VerdictEvent struct {
	Type      string                 `json:"type"` // "verdict", "challenge_issued", "challenge_resolved", "trust_update"
	AgentID   string                 `json:"agent_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// VerdictStreamer manages WebSocket connections for live detection events.
type VerdictStreamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan VerdictEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewVerdictStreamer creates a new verdict streamer.
func NewVerdictStreamer() *VerdictStreamer {
	return &VerdictStreamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan VerdictEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}
}

// Run starts the WebSocket hub.
func (vs *VerdictStreamer) Run() {
	for {
		select {
		case client := <-vs.register:
			vs.mu.Lock()
			vs.clients[client] = true
			vs.mu.Unlock()
			log.Printf("📡 WebSocket client connected (total: %d)", len(vs.clients))

		case client := <-vs.unregister:
			vs.mu.Lock()
			if _, ok := vs.clients[client]; ok {
				delete(vs.clients, client)
				client.Close()
			}
			vs.mu.Unlock()
			log.Printf("📡 WebSocket client disconnected (total: %d)", len(vs.clients))

		case event := <-vs.broadcast:
			var dead []*websocket.Conn
			vs.mu.RLock()
			for client := range vs.clients {
				if err := client.WriteJSON(event); err != nil {
					log.Printf("WebSocket write error: %v", err)
					dead = append(dead, client)
				}
			}
			vs.mu.RUnlock()
			if len(dead) > 0 {
				vs.mu.Lock()
				for _, client := range dead {
					client.Close()
					delete(vs.clients, client)
				}
				vs.mu.Unlock()
			}
		}
	}
}

// HandleWebSocket handles WebSocket connections.
func (vs *VerdictStreamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := vs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	vs.register <- conn

	// Keep connection alive
	go func() {
		defer func() {
			vs.unregister <- conn
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

// BroadcastEvent sends an event to all connected clients. Drops the event if
// the queue is full rather than blocking the evaluation path.
func (vs *VerdictStreamer) BroadcastEvent(event VerdictEvent) {
	event.Timestamp = time.Now()
	select {
	case vs.broadcast <- event:
	default:
		log.Printf("WebSocket broadcast queue full, dropping %s event", event.Type)
	}
}

// StreamVerdict broadcasts one evaluation result.
func (vs *VerdictStreamer) StreamVerdict(agentID string, result antigaming.GamingDetectionResult) {
	data := map[string]interface{}{
		"is_gaming":   result.IsGaming,
		"gaming_type": result.GamingType,
		"confidence":  result.Confidence,
		"evidence":    result.Evidence,
	}
	if result.SuspicionLevel != nil {
		data["suspicion_level"] = *result.SuspicionLevel
	}
	if result.Challenge != nil {
		data["challenge_id"] = result.Challenge.ID
	}

	vs.BroadcastEvent(VerdictEvent{
		Type:    "verdict",
		AgentID: agentID,
		Data:    data,
	})
}

// StreamChallengeResolved broadcasts a scored challenge outcome.
func (vs *VerdictStreamer) StreamChallengeResolved(agentID string, outcome antigaming.ChallengeOutcome) {
	vs.BroadcastEvent(VerdictEvent{
		Type:    "challenge_resolved",
		AgentID: agentID,
		Data: map[string]interface{}{
			"challenge_id": outcome.ChallengeID,
			"passed":       outcome.Passed,
			"score":        outcome.Score,
			"trust_impact": outcome.TrustImpact,
		},
	})
}

// StreamTrustUpdate broadcasts an agent's new trust score.
func (vs *VerdictStreamer) StreamTrustUpdate(agentID string, score float64) {
	vs.BroadcastEvent(VerdictEvent{
		Type:    "trust_update",
		AgentID: agentID,
		Data: map[string]interface{}{
			"trust_score": score,
			"color":       trustColor(score),
		},
	})
}

// trustColor maps a 0-100 trust score to a dashboard color.
func trustColor(score float64) string {
	switch {
	case score >= 80:
		return "#22c55e" // Green - healthy
	case score >= 60:
		return "#eab308" // Yellow - watch
	case score >= 40:
		return "#f97316" // Orange - degraded
	default:
		return "#ef4444" // Red - quarantine candidate
	}
}

// GetStatistics returns WebSocket statistics.
func (vs *VerdictStreamer) GetStatistics() map[string]interface{} {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	return map[string]interface{}{
		"connected_clients": len(vs.clients),
		"broadcast_queue":   len(vs.broadcast),
	}
}
