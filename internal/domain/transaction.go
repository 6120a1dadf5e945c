// Package domain holds the entity types shared across the reconciliation
// and accounts-payable engine. Types here carry small invariant checks;
// business logic lives in the owning component package.
package domain

import (
	"time"

	"reconcore/internal/apperr"
	"reconcore/pkg/money"
)

func errValidation(msg string) error { return apperr.Validation(msg) }

// TransactionSource identifies which system originated a Transaction.
type TransactionSource string

const (
	SourceGateway  TransactionSource = "gateway"
	SourceBank     TransactionSource = "bank"
	SourceInternal TransactionSource = "internal"
	SourceEmail    TransactionSource = "email"
	SourceManual   TransactionSource = "manual"
)

// TransactionStatus is the reconciliation-facing lifecycle of a Transaction.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnMatched   TransactionStatus = "matched"
	TxnPartial   TransactionStatus = "partial"
	TxnException TransactionStatus = "exception"
	TxnResolved  TransactionStatus = "resolved"
	TxnIgnored   TransactionStatus = "ignored"
)

// Transaction is one financial event: a bank line, gateway settlement,
// internal ledger entry, or an event derived from an inbound email.
type Transaction struct {
	ID             string            `json:"id" db:"id"`
	OrganizationID string            `json:"organization_id" db:"organization_id"`
	Amount         money.Money       `json:"amount" db:"-"`
	ValueDate      time.Time         `json:"value_date" db:"value_date"`
	Description    string            `json:"description" db:"description"`
	Reference      string            `json:"reference,omitempty" db:"reference"`
	Counterparty   string            `json:"counterparty,omitempty" db:"counterparty"`
	Source         TransactionSource `json:"source" db:"source"`
	SourceID       string            `json:"source_id" db:"source_id"`
	Status         TransactionStatus `json:"status" db:"status"`
	MatchedWith    []string          `json:"matched_with,omitempty" db:"-"`
	ExtraMetadata  map[string]string `json:"extra_metadata,omitempty" db:"-"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// Validate checks field-level invariants that do not require store access.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return errValidation("transaction id is required")
	}
	if t.OrganizationID == "" {
		return errValidation("organization_id is required")
	}
	switch t.Source {
	case SourceGateway, SourceBank, SourceInternal, SourceEmail, SourceManual:
	default:
		return errValidation("unknown transaction source: " + string(t.Source))
	}
	if t.ValueDate.IsZero() {
		return errValidation("value_date is required")
	}
	return nil
}
