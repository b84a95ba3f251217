package db

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/yecs/internal/types"
)

// MemoryStore implements Store in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]types.ApplicantProfile
	scores   []ScoreRecord
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]types.ApplicantProfile)}
}

// GetDocument implements Store.
func (m *MemoryStore) GetDocument(_ context.Context, identity string) (*types.ApplicantProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[identity]
	if !ok {
		return nil, nil
	}
	clone := profile.Clone()
	return &clone, nil
}

// PutDocument implements Store.
func (m *MemoryStore) PutDocument(_ context.Context, identity string, profile types.ApplicantProfile) error {
	m.mu.Lock()
	m.profiles[identity] = profile.Clone()
	m.mu.Unlock()
	return nil
}

// SaveScore implements Store.
func (m *MemoryStore) SaveScore(_ context.Context, identity string, score *types.ScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scores = append(m.scores, ScoreRecord{
		ID:        int64(len(m.scores) + 1),
		Identity:  identity,
		Result:    *score,
		CreatedAt: time.Now(),
	})
	return nil
}

// ListScores implements Store.
func (m *MemoryStore) ListScores(_ context.Context, identity string, limit int) ([]ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []ScoreRecord{}
	for i := len(m.scores) - 1; i >= 0 && len(records) < limit; i-- {
		if m.scores[i].Identity == identity {
			records = append(records, m.scores[i])
		}
	}
	return records, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
