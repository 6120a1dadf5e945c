package journal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
	"reconcore/pkg/money"
)

func mustMoney(t *testing.T, amount string) money.Money {
	t.Helper()
	m, err := money.NewFromString(amount, "USD")
	require.NoError(t, err)
	return m
}

func idGen() string { return "draft-1" }

func TestGenerate_ExactMatchNoFee(t *testing.T) {
	match := domain.Match{ID: "m1", Score: domain.ScoreBreakdown{Total: 95}}
	gross := mustMoney(t, "1500.00")
	net := mustMoney(t, "1500.00")

	draft, err := Generate(match, gross, net, 90, DefaultAccountMapping(), idGen)

	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Len(t, draft.Lines, 2)
	assertBalancedSum(t, draft.Lines)
}

func TestGenerate_FeeDetection(t *testing.T) {
	match := domain.Match{ID: "m2", Score: domain.ScoreBreakdown{Total: 92}}
	gross := mustMoney(t, "1000.00")
	net := mustMoney(t, "970.00")

	draft, err := Generate(match, gross, net, 90, DefaultAccountMapping(), idGen)

	require.NoError(t, err)
	require.NotNil(t, draft)
	require.Len(t, draft.Lines, 3)

	var cashLine, feeLine, arLine domain.JournalLine
	for _, l := range draft.Lines {
		switch l.GLAccount {
		case DefaultAccountMapping().CashAccount:
			cashLine = l
		case DefaultAccountMapping().ProcessingFeesAccount:
			feeLine = l
		case DefaultAccountMapping().AccountsReceivableAccount:
			arLine = l
		}
	}
	assert.True(t, cashLine.Amount.Amount().Equal(decimal.RequireFromString("970.00")))
	assert.True(t, feeLine.Amount.Amount().Equal(decimal.RequireFromString("30.00")))
	assert.True(t, arLine.Amount.Amount().Equal(decimal.RequireFromString("1000.00")))
	assertBalancedSum(t, draft.Lines)
}

func TestGenerate_BelowThresholdReturnsNil(t *testing.T) {
	match := domain.Match{ID: "m3", Score: domain.ScoreBreakdown{Total: 85}}
	gross := mustMoney(t, "100.00")
	net := mustMoney(t, "100.00")

	draft, err := Generate(match, gross, net, 90, DefaultAccountMapping(), idGen)

	require.NoError(t, err)
	assert.Nil(t, draft)
}

func assertBalancedSum(t *testing.T, lines []domain.JournalLine) {
	t.Helper()
	debits := decimal.Zero
	credits := decimal.Zero
	for _, l := range lines {
		if l.Side == domain.SideDebit {
			debits = debits.Add(l.Amount.Amount())
		} else {
			credits = credits.Add(l.Amount.Amount())
		}
	}
	assert.True(t, debits.Equal(credits), "debits %s != credits %s", debits, credits)
}
