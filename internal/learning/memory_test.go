package learning

import (
	"context"
	"sync"

	"reconcore/internal/domain"
)

type memoryRepo struct {
	mu          sync.Mutex
	corrections []domain.Correction
	rules       map[string]domain.LearnedRule
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rules: make(map[string]domain.LearnedRule)}
}

func ruleKey(organizationID string, ruleType domain.CorrectionType, key string) string {
	return organizationID + "|" + string(ruleType) + "|" + key
}

func (r *memoryRepo) AppendCorrection(_ context.Context, c domain.Correction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corrections = append(r.corrections, c)
	return nil
}

func (r *memoryRepo) CountCorrections(_ context.Context, organizationID string, ruleType domain.CorrectionType, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.corrections {
		if c.OrganizationID == organizationID && c.Type == ruleType && correctionKey(c) == key {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) GetRule(_ context.Context, organizationID string, ruleType domain.CorrectionType, key string) (*domain.LearnedRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleKey(organizationID, ruleType, key)]
	if !ok {
		return nil, nil
	}
	cp := rule
	return &cp, nil
}

func (r *memoryRepo) UpsertRule(_ context.Context, rule domain.LearnedRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[ruleKey(rule.OrganizationID, rule.RuleType, rule.Key)] = rule
	return nil
}
