package invoice

import (
	"context"
	"strings"

	"reconcore/internal/domain"
	"reconcore/internal/learning"
)

// Categorization is the output of Categorize: a suggested GL account and
// confidence, with provenance of how it was derived.
type Categorization struct {
	GLCode     string
	Confidence float64
	Source     string // "learned_rule", "keyword_match", "default"
	Message    string
}

const (
	learnedRuleMinConfidence = 0.5
	keywordMatchMaxConfidence = 0.95
)

// Categorize implements spec.md §4.E `categorize`: prefer a learned
// vendor->GL rule at confidence >= 0.5, otherwise score each account's
// keywords against a token stream and pick the best match, falling back
// to a configurable default account.
func Categorize(ctx context.Context, learn *learning.Service, organizationID, vendor, invoiceNumber, description string, accounts []domain.ChartAccount, defaultAccount string) Categorization {
	if learn != nil {
		if suggestion, err := learn.Suggest(ctx, organizationID, domain.CorrectionGLCode, vendor); err == nil && suggestion != nil && suggestion.Confidence >= learnedRuleMinConfidence {
			return Categorization{GLCode: suggestion.Value, Confidence: suggestion.Confidence, Source: "learned_rule", Message: suggestion.Message}
		}
	}

	tokens := tokenize(vendor + " " + invoiceNumber + " " + description)
	bestAccount := ""
	bestScore := 0.0
	for _, acc := range accounts {
		score := keywordScore(tokens, acc.Keywords)
		if score > bestScore {
			bestScore = score
			bestAccount = acc.Code
		}
	}

	if bestAccount != "" {
		confidence := clamp(0.5+0.1*bestScore, 0, keywordMatchMaxConfidence)
		return Categorization{GLCode: bestAccount, Confidence: confidence, Source: "keyword_match"}
	}

	return Categorization{GLCode: defaultAccount, Confidence: 0.5, Source: "default"}
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		tokens[w] = true
	}
	return tokens
}

func keywordScore(tokens map[string]bool, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if tokens[strings.ToLower(kw)] {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
