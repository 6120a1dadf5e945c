package domain

import "time"

// CorrectionType classifies a human correction fed back into the
// Learning & Correction Service.
type CorrectionType string

const (
	CorrectionGLCode         CorrectionType = "gl_code"
	CorrectionVendorAlias    CorrectionType = "vendor_alias"
	CorrectionAmount         CorrectionType = "amount"
	CorrectionClassification CorrectionType = "classification"
	CorrectionApproval       CorrectionType = "approval"
)

// CorrectionContext is the optional disambiguating context attached to a
// correction (vendor, amount band, sender, matched transaction/invoice).
type CorrectionContext struct {
	Vendor    string `json:"vendor,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Sender    string `json:"sender,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
}

// Correction is an immutable record of a human correction.
type Correction struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Type           CorrectionType    `json:"type"`
	Original       string            `json:"original"`
	Corrected      string            `json:"corrected"`
	Context        CorrectionContext `json:"context"`
	UserID         string            `json:"user_id"`
	CreatedAt      time.Time         `json:"created_at"`
}

// LearnedRule is a derived rule record in the Learning Service's rule
// table: either a gl_code rule, a vendor_alias rule, or an
// approval-threshold bias, keyed by (organization, rule type, key).
type LearnedRule struct {
	OrganizationID  string    `json:"organization_id"`
	RuleType        CorrectionType `json:"rule_type"`
	Key             string    `json:"key"` // e.g. vendor name
	Value           string    `json:"value"` // e.g. gl code, alias, or threshold delta
	Confidence      float64   `json:"confidence"`
	ThresholdAdj    float64   `json:"threshold_adj,omitempty"`
	ReinforceCount  int       `json:"reinforce_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}
