package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
	"reconcore/internal/exception"
	"reconcore/internal/journal"
	"reconcore/internal/patternstore"
	"reconcore/pkg/money"
)

// fakeTxnRepo is a process-local stand-in for the Postgres-backed
// transaction repository, keyed by source so ListUnreconciled can be
// scoped the same way the real one is.
type fakeTxnRepo struct {
	mu       sync.Mutex
	bySource map[domain.TransactionSource][]domain.Transaction
	matched  map[string]string
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{bySource: make(map[domain.TransactionSource][]domain.Transaction), matched: make(map[string]string)}
}

func (f *fakeTxnRepo) add(t domain.Transaction) {
	f.bySource[t.Source] = append(f.bySource[t.Source], t)
}

func (f *fakeTxnRepo) ListUnreconciled(_ context.Context, _ string, source domain.TransactionSource) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Transaction, len(f.bySource[source]))
	copy(out, f.bySource[source])
	return out, nil
}

func (f *fakeTxnRepo) MarkMatched(_ context.Context, _ string, transactionIDs []string, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range transactionIDs {
		f.matched[id] = matchID
	}
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches []domain.Match
}

func (f *fakeMatchRepo) Create(_ context.Context, m domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, m)
	return nil
}

type fakeDraftRepo struct {
	mu     sync.Mutex
	drafts []domain.DraftJournalEntry
}

func (f *fakeDraftRepo) Create(_ context.Context, d domain.DraftJournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	return nil
}

// fakeExceptionRepo backs a real *exception.Router so the orchestrator
// under test exercises the actual routing/priority logic rather than a
// stub.
type fakeExceptionRepo struct {
	mu         sync.Mutex
	exceptions []domain.Exception
}

func (f *fakeExceptionRepo) Create(_ context.Context, exc domain.Exception) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exceptions = append(f.exceptions, exc)
	return nil
}

func (f *fakeExceptionRepo) List(_ context.Context, _ string) ([]domain.Exception, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Exception, len(f.exceptions))
	copy(out, f.exceptions)
	return out, nil
}

func (f *fakeExceptionRepo) Resolve(_ context.Context, _, _, _, _ string, _ bool) error {
	return nil
}

func mustMoney(t *testing.T, amount, currency string) money.Money {
	t.Helper()
	m, err := money.NewFromString(amount, currency)
	require.NoError(t, err)
	return m
}

func sequentialIDGen(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

func defaultReconCfg() domain.ReconciliationConfig {
	return domain.ReconciliationConfig{
		AmountTolerancePct:      5,
		DateWindowDays:          7,
		MatchThreshold:          80,
		ReviewRequiredThreshold: 50,
		AutoMatchThreshold:      80,
		AutoJEThreshold:         90,
		SplitMatchPenalty:       5,
		MaxMatrixCells:          1000000,
		ScoreWorkers:            2,
	}
}

// newTestOrchestrator wires fakes for every collaborator the way
// cmd/api/main.go wires the real ones, minus the database and the
// Kafka-backed sinks: a nil audit sink and a nil notifier are both
// valid per New's doc comments.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeTxnRepo, *fakeMatchRepo, *fakeDraftRepo, *fakeExceptionRepo) {
	t.Helper()
	txRepo := newFakeTxnRepo()
	matchRepo := &fakeMatchRepo{}
	draftRepo := &fakeDraftRepo{}
	excRepo := &fakeExceptionRepo{}
	router := exception.New(excRepo, domain.DefaultPriorityBands(), nil)
	orch := New(txRepo, matchRepo, draftRepo, patternstore.NewInMemory(), router, nil, sequentialIDGen("id"), journal.DefaultAccountMapping())
	return orch, txRepo, matchRepo, draftRepo, excRepo
}

var day = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

// Scenario A (spec.md §8): an exact-amount, same-day, matching
// description/reference pair scores well above AUTO_JE_THRESHOLD and
// produces both a confirmed match and a draft journal entry.
func TestRun_ExactMatchProducesAutoJournalEntry(t *testing.T) {
	orch, txRepo, matchRepo, draftRepo, excRepo := newTestOrchestrator(t)
	txRepo.add(domain.Transaction{ID: "gw1", OrganizationID: "org1", Amount: mustMoney(t, "1500.00", "USD"), ValueDate: day, Description: "STRIPE payment pi_123", Reference: "pi_123", Source: domain.SourceGateway})
	txRepo.add(domain.Transaction{ID: "bk1", OrganizationID: "org1", Amount: mustMoney(t, "1500.00", "USD"), ValueDate: day, Description: "STRIPE pi_123", Reference: "pi_123", Source: domain.SourceBank})

	result, err := orch.Run(context.Background(), "org1", defaultReconCfg(), domain.SourceGateway, domain.SourceBank, "")

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, domain.MatchAuto, result.Matches[0].MatchType)
	assert.GreaterOrEqual(t, result.Matches[0].Score.Total, 90)
	assert.Empty(t, result.Exceptions)
	assert.Equal(t, 1.0, result.MatchRate)

	require.Len(t, draftRepo.drafts, 1)
	require.Len(t, draftRepo.drafts[0].Lines, 2) // cash debit + AR credit, no fee line
	require.Len(t, matchRepo.matches, 1)
	assert.Equal(t, matchRepo.matches[0].ID, result.Matches[0].ID)
	assert.Empty(t, excRepo.exceptions)
}

// Scenario B (spec.md §8): the gateway's gross settlement is slightly
// above the bank's net amount, the difference being a processing fee.
// The pair still scores high enough for an auto match and draft, and
// the draft records the fee as its own debit line.
func TestRun_FeeVarianceProducesFeeLine(t *testing.T) {
	orch, txRepo, _, draftRepo, _ := newTestOrchestrator(t)
	txRepo.add(domain.Transaction{ID: "gw1", OrganizationID: "org1", Amount: mustMoney(t, "1000.00", "USD"), ValueDate: day, Description: "payment acme invoice 42", Reference: "INV-42", Source: domain.SourceGateway})
	txRepo.add(domain.Transaction{ID: "bk1", OrganizationID: "org1", Amount: mustMoney(t, "990.00", "USD"), ValueDate: day, Description: "payment acme invoice 42", Reference: "INV-42", Source: domain.SourceBank})

	result, err := orch.Run(context.Background(), "org1", defaultReconCfg(), domain.SourceGateway, domain.SourceBank, "")

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, domain.MatchAuto, result.Matches[0].MatchType)

	require.Len(t, draftRepo.drafts, 1)
	lines := draftRepo.drafts[0].Lines
	require.Len(t, lines, 3) // cash debit + fee debit + AR credit
	var feeLine *domain.JournalLine
	for i := range lines {
		if lines[i].GLAccount == journal.DefaultAccountMapping().ProcessingFeesAccount {
			feeLine = &lines[i]
		}
	}
	require.NotNil(t, feeLine, "expected a processing fee line")
	assert.Equal(t, domain.SideDebit, feeLine.Side)
	assert.True(t, feeLine.Amount.Amount().Equal(mustMoney(t, "10.00", "USD").Amount()))
}

// Scenario C (spec.md §8): a source transaction with no counterpart at
// all routes to a no_match exception whose priority reflects its
// amount against the configured bands.
func TestRun_UnmatchedSourceRoutesCriticalException(t *testing.T) {
	orch, txRepo, _, draftRepo, excRepo := newTestOrchestrator(t)
	txRepo.add(domain.Transaction{ID: "gw1", OrganizationID: "org1", Amount: mustMoney(t, "25000.00", "USD"), ValueDate: day, Description: "unexplained wire", Source: domain.SourceGateway})

	result, err := orch.Run(context.Background(), "org1", defaultReconCfg(), domain.SourceGateway, domain.SourceBank, "")

	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, []string{"gw1"}, result.UnmatchedSource)
	assert.Equal(t, 0.0, result.MatchRate)
	assert.Empty(t, draftRepo.drafts)

	require.Len(t, result.Exceptions, 1)
	assert.Equal(t, domain.ExceptionNoMatch, result.Exceptions[0].Type)
	assert.Equal(t, domain.PriorityCritical, result.Exceptions[0].Priority)
	require.Len(t, excRepo.exceptions, 1)
}

// Scenario D (spec.md §8): one gateway settlement corresponds to two
// separate bank lines; the split/group pass groups them into a single
// match with both bank transaction IDs on the target side, and a draft
// is not generated since generateDraft only handles 1:1 matches.
func TestRun_SplitMatchGroupsMultipleTargets(t *testing.T) {
	orch, txRepo, _, draftRepo, _ := newTestOrchestrator(t)
	txRepo.add(domain.Transaction{ID: "gw1", OrganizationID: "org1", Amount: mustMoney(t, "300.00", "USD"), ValueDate: day, Source: domain.SourceGateway})
	txRepo.add(domain.Transaction{ID: "bk1", OrganizationID: "org1", Amount: mustMoney(t, "100.00", "USD"), ValueDate: day, Source: domain.SourceBank})
	txRepo.add(domain.Transaction{ID: "bk2", OrganizationID: "org1", Amount: mustMoney(t, "200.00", "USD"), ValueDate: day.AddDate(0, 0, 1), Source: domain.SourceBank})

	result, err := orch.Run(context.Background(), "org1", defaultReconCfg(), domain.SourceGateway, domain.SourceBank, "")

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].IsSplit())
	assert.ElementsMatch(t, []string{"bk1", "bk2"}, result.Matches[0].TargetIDs)
	assert.Empty(t, result.UnmatchedSource)
	assert.Empty(t, result.UnmatchedTarget)
	assert.Empty(t, draftRepo.drafts)
}

// Testable property 8: the returned exception list's priority order is
// non-increasing even though the two sources are appended to
// result.Exceptions in increasing-priority creation order.
func TestRun_ExceptionsSortedByPriorityDescending(t *testing.T) {
	orch, txRepo, _, _, _ := newTestOrchestrator(t)
	txRepo.add(domain.Transaction{ID: "gw1", OrganizationID: "org1", Amount: mustMoney(t, "1000.00", "USD"), ValueDate: day, Source: domain.SourceGateway})
	txRepo.add(domain.Transaction{ID: "gw2", OrganizationID: "org1", Amount: mustMoney(t, "25000.00", "USD"), ValueDate: day, Source: domain.SourceGateway})

	result, err := orch.Run(context.Background(), "org1", defaultReconCfg(), domain.SourceGateway, domain.SourceBank, "")

	require.NoError(t, err)
	require.Len(t, result.Exceptions, 2)
	assert.Equal(t, domain.PriorityCritical, result.Exceptions[0].Priority)
	assert.Equal(t, domain.PriorityMedium, result.Exceptions[1].Priority)
}
