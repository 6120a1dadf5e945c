// Package journal implements the Draft Journal Generator: it turns a
// high-confidence Match into a balanced set of debit/credit lines.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/money"
)

// AccountMapping resolves the GL account code to use for each line role,
// sourced from organization configuration.
type AccountMapping struct {
	CashAccount               string
	ProcessingFeesAccount     string
	AccountsReceivableAccount string
}

// DefaultAccountMapping is used when an organization has not configured
// its own chart-of-accounts mapping for journal generation.
func DefaultAccountMapping() AccountMapping {
	return AccountMapping{CashAccount: "1000", ProcessingFeesAccount: "6200", AccountsReceivableAccount: "1200"}
}

// Generate produces a balanced DraftJournalEntry for a Match whose score
// is at least AUTO_JE_THRESHOLD. grossAmount is the gateway/source side's
// amount, netAmount the bank/target side's settled amount (same
// currency); a positive difference is recorded as a processing fee line.
// Generate returns nil, nil when the match's score is below the
// threshold — it is simply not eligible, not an error.
func Generate(match domain.Match, gross, net money.Money, autoJEThreshold int, mapping AccountMapping, idGen func() string) (*domain.DraftJournalEntry, error) {
	if match.Score.Total < autoJEThreshold {
		return nil, nil
	}
	if gross.Currency() != net.Currency() {
		return nil, apperr.Validation("gross and net amounts must share a currency")
	}

	var lines []domain.JournalLine
	fee := decimal.Zero
	if gross.Amount().GreaterThan(net.Amount()) {
		fee = gross.Amount().Sub(net.Amount())
	}

	cashLine, err := newLine(mapping.CashAccount, domain.SideDebit, net, "bank net settlement")
	if err != nil {
		return nil, err
	}
	lines = append(lines, cashLine)

	if fee.IsPositive() {
		feeMoney, err := money.New(fee, net.Currency().String())
		if err != nil {
			return nil, apperr.Internal("invalid fee amount", err)
		}
		feeLine, err := newLine(mapping.ProcessingFeesAccount, domain.SideDebit, feeMoney, "processing fee")
		if err != nil {
			return nil, err
		}
		lines = append(lines, feeLine)
	}

	arLine, err := newLine(mapping.AccountsReceivableAccount, domain.SideCredit, gross, "accounts receivable settlement")
	if err != nil {
		return nil, err
	}
	lines = append(lines, arLine)

	if err := assertBalanced(lines); err != nil {
		return nil, err
	}

	return &domain.DraftJournalEntry{
		ID:        idGen(),
		MatchID:   match.ID,
		Lines:     lines,
		Status:    domain.DraftStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

func newLine(account string, side domain.JournalSide, amount money.Money, description string) (domain.JournalLine, error) {
	if account == "" {
		return domain.JournalLine{}, apperr.Validation("gl account is required for journal line")
	}
	return domain.JournalLine{GLAccount: account, Side: side, Amount: amount, Description: description}, nil
}

// assertBalanced enforces spec.md §4.H's hard invariant: sum of debits
// equals sum of credits per currency. An unbalanced entry is a fatal
// internal_invariant error, never emitted.
func assertBalanced(lines []domain.JournalLine) error {
	totals := make(map[string]decimal.Decimal)
	for _, l := range lines {
		cur := l.Amount.Currency().String()
		delta := l.Amount.Amount()
		if l.Side == domain.SideCredit {
			delta = delta.Neg()
		}
		totals[cur] = totals[cur].Add(delta)
	}
	for cur, total := range totals {
		if !total.IsZero() {
			return apperr.Internal("draft journal entry is unbalanced", nil).WithDetails(cur)
		}
	}
	return nil
}
