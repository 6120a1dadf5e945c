package patternstore

import (
	"context"
	"sync"
	"time"

	"reconcore/internal/domain"
)

// InMemory is a Store backed by a process-local map, used by tests.
type InMemory struct {
	mu       sync.Mutex
	patterns map[string]domain.Pattern
}

func NewInMemory() *InMemory {
	return &InMemory{patterns: make(map[string]domain.Pattern)}
}

func (m *InMemory) Upsert(_ context.Context, p domain.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Confidence = domain.ClampConfidence(p.Confidence)
	p.LastUpdated = time.Now()
	m.patterns[p.ID] = p
	return nil
}

func (m *InMemory) List(_ context.Context, organizationID string) ([]domain.Pattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *InMemory) IncrementUsage(_ context.Context, _, patternID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patterns[patternID]; ok {
		p.MatchCount++
		p.LastUsed = time.Now()
		m.patterns[patternID] = p
	}
	return nil
}
