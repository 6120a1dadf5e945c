// Package assignment turns a pairwise score matrix over N source and M
// target transactions into a 1:1 assignment, respecting a confidence
// threshold and supporting split/group matches.
package assignment

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/internal/scorer"
)

// Config tunes the Assignment Engine. Zero values are filled from
// internal/config defaults by callers.
type Config struct {
	AmountTolerancePct float64
	DateWindowDays     int
	MatchThreshold     int // 0-100 scale
	SplitMatchPenalty  int
	MaxMatrixCells     int
	ScoreWorkers       int
}

// Candidate is one transaction, adapted into a scorer.Pair by the caller;
// the Pair's Amount and Date also drive the hard gate.
type Candidate struct {
	Pair scorer.Pair
}

// Result is the output of Run: confirmed matches plus each side's
// leftover unmatched IDs.
type Result struct {
	Matches         []domain.Match
	UnmatchedSource []string
	UnmatchedTarget []string
}

// Run executes the full algorithm from spec.md §4.C: hard-gated cost
// matrix, greedy highest-score-first assignment with deterministic
// tie-break, threshold rejection, and a split/group second pass.
func Run(ctx context.Context, cfg Config, sources, targets []Candidate, patterns []domain.Pattern) (*Result, error) {
	n, m := len(sources), len(targets)
	if n == 0 || m == 0 {
		res := &Result{}
		for _, s := range sources {
			res.UnmatchedSource = append(res.UnmatchedSource, s.Pair.ID)
		}
		for _, t := range targets {
			res.UnmatchedTarget = append(res.UnmatchedTarget, t.Pair.ID)
		}
		return res, nil
	}

	if cfg.MaxMatrixCells > 0 && n*m > cfg.MaxMatrixCells {
		return nil, apperr.OverCapacity("scoring matrix exceeds configured cap").
			WithDetails("reduce batch size or raise max_matrix_cells")
	}

	candidates, err := scoreEligiblePairs(ctx, cfg, sources, targets, patterns)
	if err != nil {
		return nil, err
	}

	matched, usedSource, usedTarget := greedyAssign(candidates, cfg.MatchThreshold)

	res := &Result{Matches: matched}
	for _, s := range sources {
		if !usedSource[s.Pair.ID] {
			res.UnmatchedSource = append(res.UnmatchedSource, s.Pair.ID)
		}
	}
	for _, t := range targets {
		if !usedTarget[t.Pair.ID] {
			res.UnmatchedTarget = append(res.UnmatchedTarget, t.Pair.ID)
		}
	}

	splitMatches, stillUnmatchedSource, stillUnmatchedTarget := findSplitMatches(cfg, sources, targets, res.UnmatchedSource, res.UnmatchedTarget)
	res.Matches = append(res.Matches, splitMatches...)
	res.UnmatchedSource = stillUnmatchedSource
	res.UnmatchedTarget = stillUnmatchedTarget

	if err := assertNoCardinalityViolation(res.Matches); err != nil {
		return nil, err
	}

	return res, nil
}

// scoreEligiblePairs applies the hard amount/date gate then scores the
// surviving pairs, fanning the scoring work out over a bounded worker
// pool.
func scoreEligiblePairs(ctx context.Context, cfg Config, sources, targets []Candidate, patterns []domain.Pattern) ([]domain.MatchCandidate, error) {
	type job struct {
		s, t int
	}
	var jobs []job
	for i, s := range sources {
		for j, t := range targets {
			if withinHardGate(cfg, s.Pair, t.Pair) {
				jobs = append(jobs, job{i, j})
			}
		}
	}

	workers := cfg.ScoreWorkers
	if workers <= 0 {
		workers = 4
	}

	results := make([]domain.MatchCandidate, len(jobs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for idx, j := range jobs {
		idx, j := idx, j
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			breakdown := scoreSafely(sources[j.s].Pair, targets[j.t].Pair, patterns)
			mu.Lock()
			results[idx] = domain.MatchCandidate{
				SourceID: sources[j.s].Pair.ID,
				TargetID: targets[j.t].Pair.ID,
				Score:    breakdown,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("scoring phase failed", err)
	}
	return results, nil
}

// scoreSafely recovers a panic from scorer.Score and treats it as a
// 0-score non-match, per the Orchestrator's failure semantics (a
// per-pair scoring exception is never a batch failure).
func scoreSafely(source, target scorer.Pair, patterns []domain.Pattern) (breakdown domain.ScoreBreakdown) {
	defer func() {
		if r := recover(); r != nil {
			breakdown = domain.ScoreBreakdown{}
		}
	}()
	return scorer.Score(source, target, patterns)
}

func withinHardGate(cfg Config, s, t scorer.Pair) bool {
	if s.Amount <= 0 || t.Amount <= 0 {
		return false
	}
	tolerance := cfg.AmountTolerancePct
	if tolerance <= 0 {
		tolerance = 5
	}
	diffPct := absf(s.Amount-t.Amount) / maxf(s.Amount, t.Amount) * 100
	if diffPct > tolerance {
		return false
	}
	window := int64(cfg.DateWindowDays)
	if window <= 0 {
		window = 7
	}
	dayDiff := s.Date - t.Date
	if dayDiff < 0 {
		dayDiff = -dayDiff
	}
	return dayDiff <= window
}

// greedyAssign picks the highest-scoring pair first, marking both sides
// used, until no eligible pair remains. Ties break by (source_id,
// target_id) ascending.
func greedyAssign(candidates []domain.MatchCandidate, threshold int) ([]domain.Match, map[string]bool, map[string]bool) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score.Total != candidates[j].Score.Total {
			return candidates[i].Score.Total > candidates[j].Score.Total
		}
		if candidates[i].SourceID != candidates[j].SourceID {
			return candidates[i].SourceID < candidates[j].SourceID
		}
		return candidates[i].TargetID < candidates[j].TargetID
	})

	usedSource := make(map[string]bool)
	usedTarget := make(map[string]bool)
	var matches []domain.Match

	for _, c := range candidates {
		if usedSource[c.SourceID] || usedTarget[c.TargetID] {
			continue
		}
		if c.Score.Total < threshold {
			continue
		}
		// MatchType is provisional; the Orchestrator reclassifies into
		// auto/needs-review/unmatched using AUTO_MATCH_THRESHOLD and
		// review_required in its own classification step (spec §4.D.5).
		matches = append(matches, domain.Match{
			SourceIDs: []string{c.SourceID},
			TargetIDs: []string{c.TargetID},
			Score:     c.Score,
			MatchType: domain.MatchAuto,
		})
		usedSource[c.SourceID] = true
		usedTarget[c.TargetID] = true
	}

	return matches, usedSource, usedTarget
}

// assertNoCardinalityViolation enforces that no transaction ID appears
// in more than one Match; a violation is a bug and fails the batch.
func assertNoCardinalityViolation(matches []domain.Match) error {
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, id := range append(append([]string{}, m.SourceIDs...), m.TargetIDs...) {
			if seen[id] {
				return apperr.Internal("transaction assigned to more than one match", nil).WithDetails(id)
			}
			seen[id] = true
		}
	}
	return nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
