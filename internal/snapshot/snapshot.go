// Package snapshot persists trust-state snapshots to an external key-value
// store. Persistence is a collaborator concern: the store only ever sees
// copies exported through the engine's public boundary, and the engine keeps
// working if Redis is down.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/vigil/backend/internal/trust"
)

const keyPrefix = "trust:snapshot:"

// KV is the minimal key-value surface the store needs. Satisfied by
// infra.GoRedisAdapter.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store writes per-agent trust snapshots keyed "trust:snapshot:<agentID>".
type Store struct {
	kv     KV
	ttl    time.Duration
	logger *log.Logger
}

// NewStore creates a snapshot store. ttl of 0 keeps snapshots forever.
func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{
		kv:     kv,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[TrustSnapshot] ", log.LstdFlags),
	}
}

// Save persists one agent's trust snapshot.
func (s *Store) Save(ctx context.Context, state trust.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", state.AgentID, err)
	}
	return s.kv.Set(ctx, keyPrefix+state.AgentID, data, s.ttl)
}

// Load retrieves one agent's persisted snapshot.
func (s *Store) Load(ctx context.Context, agentID string) (trust.State, error) {
	data, err := s.kv.Get(ctx, keyPrefix+agentID)
	if err != nil {
		return trust.State{}, err
	}
	var state trust.State
	if err := json.Unmarshal(data, &state); err != nil {
		return trust.State{}, fmt.Errorf("unmarshal snapshot for %s: %w", agentID, err)
	}
	return state, nil
}

// SaveAll persists a batch of snapshots, logging and skipping individual
// failures. Returns how many were written.
func (s *Store) SaveAll(ctx context.Context, states []trust.State) int {
	saved := 0
	for _, st := range states {
		if err := s.Save(ctx, st); err != nil {
			s.logger.Printf("Failed to persist snapshot for %s: %v", st.AgentID, err)
			continue
		}
		saved++
	}
	return saved
}
