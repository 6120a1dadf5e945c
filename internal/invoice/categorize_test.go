package invoice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
	"reconcore/internal/learning"
)

type stubLearningRepo struct {
	rule *domain.LearnedRule
}

func (r *stubLearningRepo) AppendCorrection(context.Context, domain.Correction) error { return nil }
func (r *stubLearningRepo) CountCorrections(context.Context, string, domain.CorrectionType, string) (int, error) {
	return 3, nil
}
func (r *stubLearningRepo) GetRule(context.Context, string, domain.CorrectionType, string) (*domain.LearnedRule, error) {
	return r.rule, nil
}
func (r *stubLearningRepo) UpsertRule(context.Context, domain.LearnedRule) error { return nil }

func TestCategorize_PrefersLearnedRule(t *testing.T) {
	repo := &stubLearningRepo{rule: &domain.LearnedRule{Value: "6150", Confidence: 0.8}}
	svc := learning.New(repo)

	result := Categorize(context.Background(), svc, "org1", "Stripe", "INV-1", "subscription", nil, "6999")

	require.Equal(t, "6150", result.GLCode)
	assert.Equal(t, "learned_rule", result.Source)
}

func TestCategorize_FallsBackToKeywordMatch(t *testing.T) {
	repo := &stubLearningRepo{rule: nil}
	svc := learning.New(repo)
	accounts := []domain.ChartAccount{
		{Code: "6100", Name: "Software", Keywords: []string{"subscription", "saas"}},
		{Code: "6200", Name: "Travel", Keywords: []string{"flight", "hotel"}},
	}

	result := Categorize(context.Background(), svc, "org1", "Acme", "INV-2", "monthly subscription charge", accounts, "6999")

	assert.Equal(t, "6100", result.GLCode)
	assert.Equal(t, "keyword_match", result.Source)
}

func TestCategorize_DefaultsWhenNoMatch(t *testing.T) {
	repo := &stubLearningRepo{rule: nil}
	svc := learning.New(repo)

	result := Categorize(context.Background(), svc, "org1", "Unknown", "INV-3", "miscellaneous", nil, "6999")

	assert.Equal(t, "6999", result.GLCode)
	assert.Equal(t, "default", result.Source)
	assert.Equal(t, 0.5, result.Confidence)
}
