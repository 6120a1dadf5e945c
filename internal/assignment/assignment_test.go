package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/scorer"
)

func defaultConfig() Config {
	return Config{AmountTolerancePct: 5, DateWindowDays: 7, MatchThreshold: 80, SplitMatchPenalty: 5, MaxMatrixCells: 1000000, ScoreWorkers: 2}
}

func TestRun_ExactMatch(t *testing.T) {
	sources := []Candidate{{Pair: scorer.Pair{ID: "gw1", Amount: 1500.00, Date: 100, Description: "STRIPE payment pi_123", Reference: "pi_123"}}}
	targets := []Candidate{{Pair: scorer.Pair{ID: "bk1", Amount: 1500.00, Date: 100, Description: "STRIPE pi_123", Reference: "pi_123"}}}

	result, err := Run(context.Background(), defaultConfig(), sources, targets, nil)

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Empty(t, result.UnmatchedSource)
	assert.Empty(t, result.UnmatchedTarget)
	assert.GreaterOrEqual(t, result.Matches[0].Score.Total, 90)
}

func TestRun_NoCardinalityViolation(t *testing.T) {
	sources := []Candidate{
		{Pair: scorer.Pair{ID: "s1", Amount: 100, Date: 1, Description: "acme", Reference: "A1"}},
		{Pair: scorer.Pair{ID: "s2", Amount: 100, Date: 1, Description: "acme", Reference: "A1"}},
	}
	targets := []Candidate{
		{Pair: scorer.Pair{ID: "t1", Amount: 100, Date: 1, Description: "acme", Reference: "A1"}},
	}

	result, err := Run(context.Background(), defaultConfig(), sources, targets, nil)

	require.NoError(t, err)
	seen := map[string]bool{}
	for _, m := range result.Matches {
		for _, id := range append(append([]string{}, m.SourceIDs...), m.TargetIDs...) {
			assert.False(t, seen[id], "transaction %s matched more than once", id)
			seen[id] = true
		}
	}
}

func TestRun_EmptyTargets(t *testing.T) {
	sources := []Candidate{{Pair: scorer.Pair{ID: "s1", Amount: 100, Date: 1}}}

	result, err := Run(context.Background(), defaultConfig(), sources, nil, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, []string{"s1"}, result.UnmatchedSource)
}

func TestRun_SplitMatch(t *testing.T) {
	sources := []Candidate{{Pair: scorer.Pair{ID: "g1", Amount: 300, Date: 100}}}
	targets := []Candidate{
		{Pair: scorer.Pair{ID: "b1", Amount: 100, Date: 100}},
		{Pair: scorer.Pair{ID: "b2", Amount: 200, Date: 101}},
	}

	result, err := Run(context.Background(), defaultConfig(), sources, targets, nil)

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.True(t, result.Matches[0].IsSplit())
	assert.ElementsMatch(t, []string{"b1", "b2"}, result.Matches[0].TargetIDs)
	assert.Empty(t, result.UnmatchedSource)
	assert.Empty(t, result.UnmatchedTarget)
}

func TestRun_OverCapacity(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxMatrixCells = 1

	sources := []Candidate{
		{Pair: scorer.Pair{ID: "s1", Amount: 100, Date: 1}},
		{Pair: scorer.Pair{ID: "s2", Amount: 100, Date: 1}},
	}
	targets := []Candidate{
		{Pair: scorer.Pair{ID: "t1", Amount: 100, Date: 1}},
		{Pair: scorer.Pair{ID: "t2", Amount: 100, Date: 1}},
	}

	_, err := Run(context.Background(), cfg, sources, targets, nil)

	require.Error(t, err)
}

func TestRun_TieBreakIsDeterministic(t *testing.T) {
	sources := []Candidate{
		{Pair: scorer.Pair{ID: "s2", Amount: 100, Date: 1, Description: "x"}},
		{Pair: scorer.Pair{ID: "s1", Amount: 100, Date: 1, Description: "x"}},
	}
	targets := []Candidate{
		{Pair: scorer.Pair{ID: "t1", Amount: 100, Date: 1, Description: "x"}},
	}

	result, err := Run(context.Background(), defaultConfig(), sources, targets, nil)

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "s1", result.Matches[0].SourceIDs[0])
}
