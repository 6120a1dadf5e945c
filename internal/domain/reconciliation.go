package domain

// ReconciliationConfig configures one Orchestrator batch run. The HTTP
// handler starts from the internal/config defaults and applies any
// per-request overrides; the Orchestrator uses the values as given and
// does not substitute defaults for zero fields.
type ReconciliationConfig struct {
	AmountTolerancePct     float64
	DateWindowDays         int
	MatchThreshold         int // 0-100 scale
	ReviewRequiredThreshold int // 0-100 scale
	AutoMatchThreshold     int // 0-100 scale, default 80
	AutoJEThreshold        int // 0-100 scale, default 90
	SplitMatchPenalty      int
	MaxMatrixCells         int
	ScoreWorkers           int
	LLMEnabled             bool
}

// ReconciliationResult is the output of one Orchestrator batch:
// matches, unmatched transactions, exceptions, and generated drafts.
type ReconciliationResult struct {
	OrganizationID    string              `json:"organization_id"`
	Matches           []Match             `json:"matches"`
	UnmatchedSource   []string            `json:"unmatched_source"`
	UnmatchedTarget   []string            `json:"unmatched_target"`
	Exceptions        []Exception         `json:"exceptions"`
	MatchRate         float64             `json:"match_rate"`
	DraftJournalEntries []DraftJournalEntry `json:"draft_journal_entries"`
}
