package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vigil/backend/internal/trust"
)

type fakeKV struct {
	data    map[string][]byte
	failOn  string
	lastTTL time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == f.failOn {
		return errors.New("kv write failed")
	}
	f.data[key] = value
	f.lastTTL = ttl
	return nil
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, errors.New("key not found")
	}
	return v, nil
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, time.Hour)

	state := trust.State{
		AgentID:              "agent-1",
		CurrentScore:         72.5,
		DecayRate:            0.015,
		GamingDetectionCount: 2,
		RecoveryDifficulty:   1.44,
		History: []trust.HistoryEntry{
			{Score: 72.5, Event: "gaming_penalty", Details: "trust_manipulation"},
		},
	}

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := kv.data["trust:snapshot:agent-1"]; !ok {
		t.Fatal("snapshot not written under the expected key")
	}
	if kv.lastTTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", kv.lastTTL)
	}

	loaded, err := store.Load(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurrentScore != state.CurrentScore || loaded.GamingDetectionCount != 2 {
		t.Errorf("loaded %+v, want %+v", loaded, state)
	}
	if len(loaded.History) != 1 || loaded.History[0].Event != "gaming_penalty" {
		t.Errorf("history not preserved: %+v", loaded.History)
	}
}

func TestLoad_MissingAgent(t *testing.T) {
	store := NewStore(newFakeKV(), 0)
	if _, err := store.Load(context.Background(), "nobody"); err == nil {
		t.Error("Load for missing agent succeeded, want error")
	}
}

func TestSaveAll_SkipsFailures(t *testing.T) {
	kv := newFakeKV()
	kv.failOn = "trust:snapshot:bad"
	store := NewStore(kv, 0)

	states := []trust.State{
		{AgentID: "good-1", CurrentScore: 90},
		{AgentID: "bad", CurrentScore: 50},
		{AgentID: "good-2", CurrentScore: 70},
	}
	if saved := store.SaveAll(context.Background(), states); saved != 2 {
		t.Errorf("SaveAll saved %d, want 2", saved)
	}
	if _, ok := kv.data["trust:snapshot:good-2"]; !ok {
		t.Error("failure did not skip, later snapshots dropped")
	}
}
