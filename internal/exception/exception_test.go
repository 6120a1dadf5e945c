package exception

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
	"reconcore/internal/notify"
)

type memoryRepo struct {
	mu   sync.Mutex
	data map[string]domain.Exception
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{data: make(map[string]domain.Exception)} }

func (r *memoryRepo) Create(_ context.Context, exc domain.Exception) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[exc.ID] = exc
	return nil
}

func (r *memoryRepo) List(_ context.Context, organizationID string) ([]domain.Exception, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Exception
	for _, e := range r.data {
		if e.OrganizationID == organizationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) Resolve(_ context.Context, _, exceptionID, resolverID, notes string, ignore bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.data[exceptionID]
	if ignore {
		e.Status = domain.ExceptionIgnored
	} else {
		e.Status = domain.ExceptionResolved
	}
	e.ResolverID = resolverID
	e.ResolutionNotes = notes
	now := time.Now()
	e.ResolvedAt = &now
	r.data[exceptionID] = e
	return nil
}

func TestClassify_DefaultBands(t *testing.T) {
	router := New(newMemoryRepo(), domain.DefaultPriorityBands(), nil)

	assert.Equal(t, domain.PriorityCritical, router.Classify(25000))
	assert.Equal(t, domain.PriorityHigh, router.Classify(5000))
	assert.Equal(t, domain.PriorityMedium, router.Classify(1000))
	assert.Equal(t, domain.PriorityLow, router.Classify(50))
}

func TestList_OrdersByPriorityThenRecency(t *testing.T) {
	repo := newMemoryRepo()
	router := New(repo, domain.DefaultPriorityBands(), nil)
	ctx := context.Background()
	n := 0
	idGen := func() string { n++; return "exc" + string(rune('0'+n)) }

	_, err := router.Route(ctx, idGen, "org1", domain.ExceptionNoMatch, 50, []string{"t1"})
	require.NoError(t, err)
	_, err = router.Route(ctx, idGen, "org1", domain.ExceptionNoMatch, 25000, []string{"t2"})
	require.NoError(t, err)
	_, err = router.Route(ctx, idGen, "org1", domain.ExceptionNoMatch, 5000, []string{"t3"})
	require.NoError(t, err)

	list, err := router.List(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i].PriorityRank, list[i-1].PriorityRank)
	}
	assert.Equal(t, domain.PriorityCritical, list[0].Priority)
}

type stubNotifier struct {
	alerts []notify.Alert
}

func (s *stubNotifier) Notify(_ context.Context, alert notify.Alert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func TestRoute_NotifiesOnCriticalPriorityOnly(t *testing.T) {
	notifier := &stubNotifier{}
	router := New(newMemoryRepo(), domain.DefaultPriorityBands(), notifier)
	ctx := context.Background()
	idGen := func() string { return "exc1" }

	_, err := router.Route(ctx, idGen, "org1", domain.ExceptionNoMatch, 50, []string{"t1"})
	require.NoError(t, err)
	assert.Empty(t, notifier.alerts)

	_, err = router.Route(ctx, idGen, "org1", domain.ExceptionNoMatch, 25000, []string{"t2"})
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "org1", notifier.alerts[0].OrganizationID)
}
