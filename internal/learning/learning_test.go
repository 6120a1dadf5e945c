package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
)

func sequentialIDGen() func() string {
	n := 0
	return func() string {
		n++
		return "correction-" + string(rune('0'+n))
	}
}

func TestRecordCorrection_GLCodeLearnsAndReinforces(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo)
	ctx := context.Background()
	idGen := sequentialIDGen()

	correction := domain.Correction{
		OrganizationID: "org1",
		Type:           domain.CorrectionGLCode,
		Original:       "6100",
		Corrected:      "6150",
		Context:        domain.CorrectionContext{Vendor: "Stripe"},
		UserID:         "u1",
	}

	first, err := svc.RecordCorrection(ctx, idGen, correction)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RulesCreated)

	rule, err := repo.GetRule(ctx, "org1", domain.CorrectionGLCode, "Stripe")
	require.NoError(t, err)
	assert.Equal(t, glRuleBaseConfidence, rule.Confidence)

	second, err := svc.RecordCorrection(ctx, idGen, correction)
	require.NoError(t, err)
	assert.Equal(t, 1, second.RulesUpdated)

	rule, _ = repo.GetRule(ctx, "org1", domain.CorrectionGLCode, "Stripe")
	assert.InDelta(t, glRuleBaseConfidence+glRuleReinforceStep, rule.Confidence, 0.0001)
}

func TestRecordCorrection_LearningMessage(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo)
	ctx := context.Background()
	idGen := sequentialIDGen()

	correction := domain.Correction{
		OrganizationID: "org1",
		Type:           domain.CorrectionGLCode,
		Original:       "6100",
		Corrected:      "6150",
		Context:        domain.CorrectionContext{Vendor: "Stripe"},
	}
	_, _ = svc.RecordCorrection(ctx, idGen, correction)
	result, err := svc.RecordCorrection(ctx, idGen, correction)

	require.NoError(t, err)
	assert.Contains(t, result.Message, "learned from 2 previous correction(s)")
}

func TestSuggest_ReturnsConfidenceAboveThreshold(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo)
	ctx := context.Background()
	idGen := sequentialIDGen()

	correction := domain.Correction{
		OrganizationID: "org1",
		Type:           domain.CorrectionGLCode,
		Original:       "6100",
		Corrected:      "6150",
		Context:        domain.CorrectionContext{Vendor: "Stripe"},
	}
	_, err := svc.RecordCorrection(ctx, idGen, correction)
	require.NoError(t, err)

	suggestion, err := svc.Suggest(ctx, "org1", domain.CorrectionGLCode, "Stripe")

	require.NoError(t, err)
	require.NotNil(t, suggestion)
	assert.Equal(t, "6150", suggestion.Value)
	assert.GreaterOrEqual(t, suggestion.Confidence, 0.7)
}

func TestRecordCorrection_ApprovalBiasIsBounded(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo)
	ctx := context.Background()
	idGen := sequentialIDGen()

	correction := domain.Correction{
		OrganizationID: "org1",
		Type:           domain.CorrectionApproval,
		Corrected:      "approve",
		Context:        domain.CorrectionContext{Vendor: "Acme"},
	}
	for i := 0; i < 10; i++ {
		_, err := svc.RecordCorrection(ctx, idGen, correction)
		require.NoError(t, err)
	}

	rule, err := repo.GetRule(ctx, "org1", domain.CorrectionApproval, "Acme")
	require.NoError(t, err)
	assert.LessOrEqual(t, rule.ThresholdAdj, approvalBiasCap)
}
