package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
)

func TestProcess_AutoApprovesWithinTolerance(t *testing.T) {
	rules := []domain.RecurringRule{{
		ID: "r1", Vendor: "Acme Hosting", Enabled: true,
		ExpectedAmount: "99.00", AmountTolerance: 5, RequireAmountMatch: true,
		Action: domain.ActionAutoApprove, ExpectedFrequency: domain.FrequencyMonthly,
	}}

	result, updated := Process(rules, "Acme Hosting", 99.50, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NotNil(t, result)
	assert.True(t, result.AutoApproved)
	assert.Equal(t, 1, updated.TotalInvoices)
}

func TestProcess_FlagsOutOfToleranceAmount(t *testing.T) {
	rules := []domain.RecurringRule{{
		ID: "r1", Vendor: "Acme Hosting", Enabled: true,
		ExpectedAmount: "99.00", AmountTolerance: 5, RequireAmountMatch: true,
		Action: domain.ActionAutoApprove,
	}}

	result, _ := Process(rules, "Acme Hosting", 150.00, time.Now())

	require.NotNil(t, result)
	assert.Equal(t, domain.ActionFlagForReview, result.Action)
	assert.NotEmpty(t, result.FlaggedReason)
}

func TestProcess_NoRuleMatches(t *testing.T) {
	result, updated := Process(nil, "Unknown Vendor", 10, time.Now())

	assert.Nil(t, result)
	assert.Nil(t, updated)
}

func TestDetectNewPattern_MonthlyCadence(t *testing.T) {
	dates := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	amounts := []float64{100, 102, 99}

	proposal := DetectNewPattern("Acme Hosting", dates, amounts)

	require.NotNil(t, proposal)
	assert.Equal(t, domain.FrequencyMonthly, proposal.Frequency)
	assert.InDelta(t, 0.45, proposal.Confidence, 0.01)
}

func TestDetectNewPattern_RejectsHighVariance(t *testing.T) {
	dates := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	amounts := []float64{100, 500, 50}

	proposal := DetectNewPattern("Acme Hosting", dates, amounts)

	assert.Nil(t, proposal)
}
