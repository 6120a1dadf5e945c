// Package scorer implements the multi-factor match scorer: a pure,
// side-effect-free function over a pair of transactions (plus an optional
// list of learned patterns) that returns a domain.ScoreBreakdown.
//
// Every exported function here is deterministic: identical inputs and an
// identical pattern snapshot always produce identical output. No package
// in this tree performs I/O or reads wall-clock time.
package scorer

import (
	"math"
	"regexp"
	"strings"

	"reconcore/internal/domain"
)

// noiseTokens are stripped from descriptions before comparison, per the
// normalization contract.
var noiseTokens = map[string]bool{
	"payment":   true,
	"transfer":  true,
	"from":      true,
	"to":        true,
	"ref":       true,
	"reference": true,
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespaceRun = regexp.MustCompile(`\s+`)
var alphanumericOnly = regexp.MustCompile(`[^a-z0-9]`)

// Pair is the minimal view of a transaction the scorer needs. Callers
// adapt domain.Transaction (or an invoice/ledger line) into a Pair.
type Pair struct {
	ID          string
	Amount      float64
	Currency    string
	Date        int64 // unix day number, e.g. t.Unix()/86400
	Description string
	Reference   string
}

// Score computes the full ScoreBreakdown for a candidate (source, target)
// pair, applying pattern_boost from the given snapshot of learned
// patterns.
func Score(source, target Pair, patterns []domain.Pattern) domain.ScoreBreakdown {
	amountScore, amountExpl := scoreAmount(source.Amount, target.Amount)
	dateScore, dateExpl := scoreDate(source.Date, target.Date)
	descScore, descExpl := scoreDescription(source.Description, target.Description)
	refScore, refExpl := scoreReference(source.Reference, target.Reference)
	boost, boostExpl, matchedID := scorePatternBoost(source.Description, target.Description, patterns)

	total := amountScore + dateScore + descScore + refScore + boost
	if total > 100 {
		total = 100
	}

	return domain.ScoreBreakdown{
		AmountScore:        amountScore,
		AmountExplanation:  amountExpl,
		DateScore:          dateScore,
		DateExplanation:    dateExpl,
		DescriptionScore:   descScore,
		DescExplanation:    descExpl,
		ReferenceScore:     refScore,
		RefExplanation:     refExpl,
		PatternBoost:       boost,
		PatternExplanation: boostExpl,
		MatchedPatternID:   matchedID,
		Total:              total,
	}
}

func scoreAmount(a, b float64) (int, string) {
	if a <= 0 || b <= 0 {
		return 0, "missing or zero amount"
	}
	if math.Abs(a-b) < 0.01 {
		return 40, "exact amount match"
	}
	diffPct := math.Abs(a-b) / math.Max(a, b) * 100
	switch {
	case diffPct <= 0.5:
		return 35, "amount within 0.5%"
	case diffPct <= 1:
		return 30, "amount within 1%"
	case diffPct <= 2:
		return 20, "amount within 2%"
	case diffPct <= 5:
		return 10, "amount within 5%"
	default:
		return 0, "amount difference exceeds 5%"
	}
}

// scoreDate bands the absolute difference between two day numbers (see
// Pair.Date; callers typically pass int64(t.Unix()/86400)).
func scoreDate(a, b int64) (int, string) {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 30, "same day"
	case diff == 1:
		return 25, "1 day apart"
	case diff == 2:
		return 20, "2 days apart"
	case diff == 3:
		return 15, "3 days apart"
	case diff <= 5:
		return 10, "4-5 days apart"
	case diff <= 7:
		return 5, "6-7 days apart"
	default:
		return 0, "beyond date window"
	}
}

func normalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !noiseTokens[w] {
			kept = append(kept, w)
		}
	}
	joined := strings.Join(kept, " ")
	return whitespaceRun.ReplaceAllString(joined, " ")
}

func scoreDescription(a, b string) (int, string) {
	na, nb := normalizeDescription(a), normalizeDescription(b)
	if na == "" || nb == "" {
		return 0, "empty description"
	}
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	dist := levenshtein(na, nb)
	pct := float64(dist) / float64(maxLen) * 100

	switch {
	case pct < 10:
		return 20, "descriptions nearly identical"
	case pct < 20:
		return 15, "descriptions closely similar"
	case pct < 30:
		return 10, "descriptions moderately similar"
	}

	if keywordOverlap(na, nb) {
		return 5, "keyword overlap"
	}
	return 0, "no description similarity"
}

func keywordOverlap(a, b string) bool {
	bWords := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		if len(w) >= 3 {
			bWords[w] = true
		}
	}
	for _, w := range strings.Fields(a) {
		if len(w) >= 3 && bWords[w] {
			return true
		}
	}
	return false
}

func normalizeReference(s string) string {
	return alphanumericOnly.ReplaceAllString(strings.ToLower(s), "")
}

func scoreReference(a, b string) (int, string) {
	na, nb := normalizeReference(a), normalizeReference(b)
	if na == "" || nb == "" {
		return 0, "missing reference"
	}
	if na == nb {
		return 10, "exact reference match"
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 7, "one reference contains the other"
	}
	shorter := na
	if len(nb) < len(shorter) {
		shorter = nb
	}
	lcs := longestCommonSubstring(na, nb)
	if lcs > len(shorter)/2 {
		return 5, "references share a long common substring"
	}
	return 0, "no reference similarity"
}

func scorePatternBoost(sourceDesc, targetDesc string, patterns []domain.Pattern) (int, string, string) {
	if len(patterns) == 0 {
		return 0, "no learned patterns", ""
	}
	normSource := normalizeDescription(sourceDesc)
	normTarget := normalizeDescription(targetDesc)

	bestConfidence := -1.0
	bestID := ""
	for _, p := range patterns {
		if p.SourcePattern == "" || p.TargetPattern == "" {
			continue
		}
		if strings.Contains(normSource, strings.ToLower(p.SourcePattern)) &&
			strings.Contains(normTarget, strings.ToLower(p.TargetPattern)) {
			if p.Confidence > bestConfidence {
				bestConfidence = p.Confidence
				bestID = p.ID
			}
		}
	}
	if bestID == "" {
		return 0, "no pattern matched", ""
	}
	boost := int(math.Min(20, bestConfidence*20))
	return boost, "pattern match boosted score", bestID
}

// levenshtein computes the classic edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

// longestCommonSubstring returns the length of the longest contiguous
// run shared by a and b.
func longestCommonSubstring(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	best := 0
	for i := 1; i <= n; i++ {
		curr := make([]int, m+1)
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			}
		}
		prev = curr
	}
	return best
}
