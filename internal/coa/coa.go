// Package coa defines the chart-of-accounts provider collaborator: an
// ordered list of {code, name, keywords[]} per organization, consumed by
// the invoice categorizer.
package coa

import (
	"context"

	"reconcore/internal/domain"
)

// Provider supplies an organization's chart of accounts.
type Provider interface {
	ListAccounts(ctx context.Context, organizationID string) ([]domain.ChartAccount, error)
}

// DefaultAccountCode is the fallback "Other Expenses" account used when
// no learned rule or keyword match is confident enough.
const DefaultAccountCode = "6999"

// InMemory is a static Provider used by default wiring and tests.
type InMemory struct {
	accounts map[string][]domain.ChartAccount
}

func NewInMemory(accounts map[string][]domain.ChartAccount) *InMemory {
	return &InMemory{accounts: accounts}
}

func (p *InMemory) ListAccounts(_ context.Context, organizationID string) ([]domain.ChartAccount, error) {
	accounts := p.accounts[organizationID]
	if accounts == nil {
		accounts = []domain.ChartAccount{{Code: DefaultAccountCode, Name: "Other Expenses"}}
	}
	return accounts, nil
}
