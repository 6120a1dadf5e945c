package domain

import (
	"time"

	"reconcore/pkg/money"
)

// APState is a state in the Invoice / AP Item lifecycle.
type APState string

const (
	APReceived      APState = "received"
	APValidated     APState = "validated"
	APNeedsInfo     APState = "needs_info"
	APNeedsApproval APState = "needs_approval"
	APApproved      APState = "approved"
	APReadyToPost   APState = "ready_to_post"
	APPostedToERP   APState = "posted_to_erp"
	APFailedPost    APState = "failed_post"
	APClosed        APState = "closed"
	APRejected      APState = "rejected"
	APMerged        APState = "merged"
)

// SourceLinkType enumerates the external evidence kinds that can be
// attached to an AP item.
type SourceLinkType string

const (
	LinkEmailThread       SourceLinkType = "email_thread"
	LinkEmailMessage      SourceLinkType = "email_message"
	LinkProcurementRecord SourceLinkType = "procurement_record"
	LinkBankTransaction   SourceLinkType = "bank_transaction"
	LinkCardStatement     SourceLinkType = "card_statement_line"
	LinkSpreadsheetCell   SourceLinkType = "spreadsheet_cell"
	LinkDMSDocument       SourceLinkType = "dms_document"
	LinkPortalEvent       SourceLinkType = "portal_event"
)

// SourceLink attaches one external evidence record to an AP item.
type SourceLink struct {
	SourceType SourceLinkType `json:"source_type"`
	SourceRef  string         `json:"source_ref"`
	DetectedAt time.Time      `json:"detected_at"`
	Subject    string         `json:"subject,omitempty"`
	Sender     string         `json:"sender,omitempty"`
}

// Key uniquely identifies a SourceLink within an AP item per §3's
// at-most-one-per-(source_type, source_ref) invariant.
func (l SourceLink) Key() string { return string(l.SourceType) + "|" + l.SourceRef }

// LineItem is one extracted invoice line.
type LineItem struct {
	Description string      `json:"description"`
	Quantity    string      `json:"quantity,omitempty"`
	UnitPrice   money.Money `json:"unit_price,omitempty"`
	Amount      money.Money `json:"amount"`
	GLCode      string      `json:"gl_code,omitempty"`
}

// Invoice is an Invoice / AP Item: a unit of accounts-payable work with
// a lifecycle managed by the Invoice / AP State Machine.
type Invoice struct {
	ID                string            `json:"id"`
	OrganizationID    string            `json:"organization_id"`
	VendorName        string            `json:"vendor_name"`
	InvoiceNumber     string            `json:"invoice_number"`
	InvoiceDate       time.Time         `json:"invoice_date"`
	DueDate           time.Time         `json:"due_date"`
	Total             money.Money       `json:"total"`
	SuggestedGLCode   string            `json:"suggested_gl_code,omitempty"`
	SuggestionConf    float64           `json:"suggestion_confidence,omitempty"`
	LineItems         []LineItem        `json:"line_items,omitempty"`
	MergeHistory      []string          `json:"merge_history,omitempty"`
	SourceLinks       []SourceLink      `json:"source_links,omitempty"`
	State             APState           `json:"state"`
	MergedInto        string            `json:"merged_into,omitempty"`
	ExtraMetadata     map[string]string `json:"extra_metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// HasSourceLink reports whether a link with the same (type, ref) is
// already attached.
func (inv *Invoice) HasSourceLink(l SourceLink) bool {
	for _, existing := range inv.SourceLinks {
		if existing.Key() == l.Key() {
			return true
		}
	}
	return false
}

// AuditEvent is one append-only record of a material decision taken by
// the AP State Machine or the Orchestrator.
type AuditEvent struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	Action         string            `json:"action"`
	FromState      string            `json:"from_state,omitempty"`
	ToState        string            `json:"to_state,omitempty"`
	ActorType      string            `json:"actor_type"`
	ActorID        string            `json:"actor_id"`
	Reason         string            `json:"reason,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// ChartAccount is one entry of an organization's chart of accounts, as
// surfaced by the chart-of-accounts provider collaborator.
type ChartAccount struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}
