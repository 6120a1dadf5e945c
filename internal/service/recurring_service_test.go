package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
)

// memoryRecurringRepo is a minimal in-process RecurringRepository used
// only by this package's tests.
type memoryRecurringRepo struct {
	mu    sync.Mutex
	rules map[string]domain.RecurringRule
}

func newMemoryRecurringRepo(rules ...domain.RecurringRule) *memoryRecurringRepo {
	r := &memoryRecurringRepo{rules: make(map[string]domain.RecurringRule)}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *memoryRecurringRepo) Create(_ context.Context, rule domain.RecurringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *memoryRecurringRepo) Update(_ context.Context, rule domain.RecurringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return assert.AnError
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *memoryRecurringRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.RecurringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecurringRule
	for _, rule := range r.rules {
		if rule.OrganizationID == organizationID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func idGen(id string) func() string {
	return func() string { return id }
}

func TestRecurringService_CreateSetsIDAndEnables(t *testing.T) {
	repo := newMemoryRecurringRepo()
	svc := NewRecurringService(repo, idGen("rule1"))

	rule, err := svc.Create(context.Background(), domain.RecurringRule{OrganizationID: "org1", Vendor: "Acme"})

	require.NoError(t, err)
	assert.Equal(t, "rule1", rule.ID)
	assert.True(t, rule.Enabled)
}

func TestRecurringService_DeleteDisablesRatherThanRemoves(t *testing.T) {
	repo := newMemoryRecurringRepo(domain.RecurringRule{ID: "rule1", OrganizationID: "org1", Vendor: "Acme", Enabled: true})
	svc := NewRecurringService(repo, idGen("unused"))

	err := svc.Delete(context.Background(), "org1", "rule1")

	require.NoError(t, err)
	rules, err := svc.List(context.Background(), "org1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Enabled)
}

func TestRecurringService_DeleteNotFound(t *testing.T) {
	repo := newMemoryRecurringRepo()
	svc := NewRecurringService(repo, idGen("unused"))

	err := svc.Delete(context.Background(), "org1", "missing")

	assert.Error(t, err)
}

func TestRecurringService_ProcessMatchesVendorAndPersistsRollingStats(t *testing.T) {
	repo := newMemoryRecurringRepo(domain.RecurringRule{
		ID: "rule1", OrganizationID: "org1", Vendor: "Acme", Enabled: true,
		ExpectedAmount: "100.00", Action: domain.ActionAutoApprove, TotalAmount: "0",
	})
	svc := NewRecurringService(repo, idGen("unused"))

	result, err := svc.Process(context.Background(), "org1", "Acme", 100.0, time.Now())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "rule1", result.MatchedRuleID)
	assert.True(t, result.AutoApproved)

	rules, err := svc.List(context.Background(), "org1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].TotalInvoices)
}

func TestRecurringService_ProcessNoMatchReturnsNil(t *testing.T) {
	repo := newMemoryRecurringRepo(domain.RecurringRule{ID: "rule1", OrganizationID: "org1", Vendor: "Other", Enabled: true})
	svc := NewRecurringService(repo, idGen("unused"))

	result, err := svc.Process(context.Background(), "org1", "Acme", 100.0, time.Now())

	require.NoError(t, err)
	assert.Nil(t, result)
}
