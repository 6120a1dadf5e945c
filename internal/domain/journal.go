package domain

import (
	"time"

	"reconcore/pkg/money"
)

// JournalSide is debit or credit.
type JournalSide string

const (
	SideDebit  JournalSide = "debit"
	SideCredit JournalSide = "credit"
)

// DraftStatus is the lifecycle of a DraftJournalEntry.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
	DraftStatusPosted   DraftStatus = "posted"
)

// JournalLine is one debit or credit line of a DraftJournalEntry.
type JournalLine struct {
	GLAccount   string      `json:"gl_account"`
	Side        JournalSide `json:"side"`
	Amount      money.Money `json:"amount"`
	Description string      `json:"description"`
}

// DraftJournalEntry is a balanced set of debit/credit lines produced from
// a high-confidence Match, awaiting approval and posting to an ERP.
type DraftJournalEntry struct {
	ID                string        `json:"id"`
	OrganizationID    string        `json:"organization_id"`
	MatchID           string        `json:"match_id"`
	Lines             []JournalLine `json:"lines"`
	Status            DraftStatus   `json:"status"`
	ExternalDocRef    string        `json:"external_doc_ref,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
