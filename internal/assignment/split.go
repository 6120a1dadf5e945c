package assignment

import (
	"reconcore/internal/domain"
)

// findSplitMatches implements the second pass of spec.md §4.C: if an
// unmatched source's amount equals the sum of two or more unmatched
// targets within the date window, emit a group-match whose score is the
// minimum component score minus a configurable penalty. Only 1:N
// (one source, many targets) grouping is attempted, matching the
// scenario in spec.md §8 Scenario D; a future pass could add N:1.
func findSplitMatches(cfg Config, sources, targets []Candidate, unmatchedSourceIDs, unmatchedTargetIDs []string) ([]domain.Match, []string, []string) {
	sourceByID := make(map[string]Candidate, len(sources))
	for _, s := range sources {
		sourceByID[s.Pair.ID] = s
	}
	targetByID := make(map[string]Candidate, len(targets))
	for _, t := range targets {
		targetByID[t.Pair.ID] = t
	}

	remainingTargets := make(map[string]bool, len(unmatchedTargetIDs))
	for _, id := range unmatchedTargetIDs {
		remainingTargets[id] = true
	}

	window := int64(cfg.DateWindowDays)
	if window <= 0 {
		window = 7
	}
	penalty := cfg.SplitMatchPenalty
	if penalty <= 0 {
		penalty = 5
	}

	var splitMatches []domain.Match
	var stillUnmatchedSource []string

	for _, sourceID := range unmatchedSourceIDs {
		source, ok := sourceByID[sourceID]
		if !ok {
			stillUnmatchedSource = append(stillUnmatchedSource, sourceID)
			continue
		}

		group := findTargetCombination(source, targets, remainingTargets, window)
		if group == nil {
			stillUnmatchedSource = append(stillUnmatchedSource, sourceID)
			continue
		}

		minScore := 100
		var targetIDs []string
		for _, t := range group {
			breakdown := scoreSafely(source.Pair, t.Pair, nil)
			if breakdown.Total < minScore {
				minScore = breakdown.Total
			}
			targetIDs = append(targetIDs, t.Pair.ID)
			delete(remainingTargets, t.Pair.ID)
		}

		groupScore := minScore - penalty
		if groupScore < 0 {
			groupScore = 0
		}

		splitMatches = append(splitMatches, domain.Match{
			SourceIDs: []string{sourceID},
			TargetIDs: targetIDs,
			Score:     domain.ScoreBreakdown{Total: groupScore, AmountExplanation: "split/group match across multiple targets"},
			MatchType: domain.MatchAuto,
		})
	}

	var stillUnmatchedTarget []string
	for id := range remainingTargets {
		stillUnmatchedTarget = append(stillUnmatchedTarget, id)
	}
	_ = targetByID

	return splitMatches, stillUnmatchedSource, stillUnmatchedTarget
}

// findTargetCombination searches the still-unmatched targets for a
// same-currency subset within the date window of source whose amounts
// sum to source's amount. Bounded brute-force subset search; candidate
// pools per source are expected to be small (a handful of unmatched
// same-day/window transactions).
func findTargetCombination(source Candidate, targets []Candidate, remaining map[string]bool, window int64) []Candidate {
	var pool []Candidate
	for _, t := range targets {
		if !remaining[t.Pair.ID] {
			continue
		}
		if t.Pair.Currency != source.Pair.Currency {
			continue
		}
		dayDiff := source.Pair.Date - t.Pair.Date
		if dayDiff < 0 {
			dayDiff = -dayDiff
		}
		if dayDiff <= window {
			pool = append(pool, t)
		}
	}
	if len(pool) < 2 || len(pool) > 20 {
		return nil
	}

	const epsilon = 0.01
	n := len(pool)
	for mask := 1; mask < (1 << n); mask++ {
		if popcount(mask) < 2 {
			continue
		}
		sum := 0.0
		var combo []Candidate
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				sum += pool[i].Pair.Amount
				combo = append(combo, pool[i])
			}
		}
		if absf(sum-source.Pair.Amount) < epsilon {
			return combo
		}
	}
	return nil
}

func popcount(mask int) int {
	count := 0
	for mask > 0 {
		count += mask & 1
		mask >>= 1
	}
	return count
}
