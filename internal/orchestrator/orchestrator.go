// Package orchestrator implements the Reconciliation Orchestrator: the
// batch pipeline that turns two sets of raw transactions into scored
// matches, draft journal entries, and routed exceptions, per spec.md
// §4.D. It is the single place that wires the Pattern Store, Assignment
// Engine, Draft Journal Generator, and Exception Router together.
package orchestrator

import (
	"context"
	"sort"
	"strconv"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/assignment"
	"reconcore/internal/audit"
	"reconcore/internal/domain"
	"reconcore/internal/exception"
	"reconcore/internal/journal"
	"reconcore/internal/patternstore"
	"reconcore/internal/scorer"
	"reconcore/pkg/logger"
)

// TransactionRepository is the narrow read/write contract the
// Orchestrator needs from transaction storage.
type TransactionRepository interface {
	ListUnreconciled(ctx context.Context, organizationID string, source domain.TransactionSource) ([]domain.Transaction, error)
	MarkMatched(ctx context.Context, organizationID string, transactionIDs []string, matchID string) error
}

// MatchRepository persists confirmed matches.
type MatchRepository interface {
	Create(ctx context.Context, m domain.Match) error
}

// DraftRepository persists generated draft journal entries.
type DraftRepository interface {
	Create(ctx context.Context, d domain.DraftJournalEntry) error
}

// Orchestrator runs one reconciliation batch end to end.
type Orchestrator struct {
	transactions TransactionRepository
	matches      MatchRepository
	drafts       DraftRepository
	patterns     patternstore.Store
	exceptions   *exception.Router
	audit        audit.Sink
	idGen        func() string
	mapping      journal.AccountMapping
}

// New builds an Orchestrator. auditSink may be nil, in which case the
// batch runs without emitting audit events (tests typically pass nil).
func New(transactions TransactionRepository, matches MatchRepository, drafts DraftRepository, patterns patternstore.Store, exceptions *exception.Router, auditSink audit.Sink, idGen func() string, mapping journal.AccountMapping) *Orchestrator {
	return &Orchestrator{
		transactions: transactions,
		matches:      matches,
		drafts:       drafts,
		patterns:     patterns,
		exceptions:   exceptions,
		audit:        auditSink,
		idGen:        idGen,
		mapping:      mapping,
	}
}

// logAudit appends one audit event for a material batch decision (spec.md
// §4.D step 8(d)). Failures are logged and never fail the batch; the
// audit sink is a side channel, not the system of record for the
// reconciliation result itself.
func (o *Orchestrator) logAudit(ctx context.Context, organizationID, entityType, entityID, action string, metadata map[string]string) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Append(ctx, domain.AuditEvent{
		EntityType: entityType, EntityID: entityID, Action: action,
		OrganizationID: organizationID, ActorType: "system", ActorID: "orchestrator",
		Metadata: metadata, OccurredAt: time.Now(),
	}); err != nil {
		logger.GetLogger().WithError(err).Warn("orchestrator: failed to append audit event")
	}
}

// Run executes the batch pipeline described in spec.md §4.D:
//  1. load unreconciled source/target transactions
//  2. snapshot the Pattern Store for this batch
//  3. run the Assignment Engine (hard gate, score, greedy assign, split pass)
//  4. if internalKind is non-empty, pair each confirmed 2-way match
//     against its internal-ledger counterpart to yield 3-way matches
//  5. classify each match into auto/needs-review by threshold
//  6. generate draft journal entries for matches at/above AUTO_JE_THRESHOLD
//  7. route unmatched and below-threshold transactions to exceptions
//  8. persist matches, drafts, exceptions and mark source transactions matched
//  9. return a ReconciliationResult summary
//
// internalKind is optional; pass "" to skip the 3-way pass entirely (a
// plain 2-way reconciliation between sourceKind and targetKind).
func (o *Orchestrator) Run(ctx context.Context, organizationID string, cfg domain.ReconciliationConfig, sourceKind, targetKind, internalKind domain.TransactionSource) (*domain.ReconciliationResult, error) {
	sourceTxns, err := o.transactions.ListUnreconciled(ctx, organizationID, sourceKind)
	if err != nil {
		return nil, apperr.Internal("failed to load source transactions", err)
	}
	targetTxns, err := o.transactions.ListUnreconciled(ctx, organizationID, targetKind)
	if err != nil {
		return nil, apperr.Internal("failed to load target transactions", err)
	}

	patterns, err := o.patterns.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	sourceByID := indexByID(sourceTxns)
	targetByID := indexByID(targetTxns)

	assignResult, err := assignment.Run(ctx, assignment.Config{
		AmountTolerancePct: cfg.AmountTolerancePct,
		DateWindowDays:     cfg.DateWindowDays,
		MatchThreshold:     cfg.MatchThreshold,
		SplitMatchPenalty:  cfg.SplitMatchPenalty,
		MaxMatrixCells:     cfg.MaxMatrixCells,
		ScoreWorkers:       cfg.ScoreWorkers,
	}, toCandidates(sourceTxns), toCandidates(targetTxns), patterns)
	if err != nil {
		return nil, err
	}

	var internalTxns []domain.Transaction
	var internalByID map[string]domain.Transaction
	var matchInternalID map[int]string
	var unmatchedInternal []string
	if internalKind != "" {
		internalTxns, err = o.transactions.ListUnreconciled(ctx, organizationID, internalKind)
		if err != nil {
			return nil, apperr.Internal("failed to load internal ledger transactions", err)
		}
		internalByID = indexByID(internalTxns)
		matchInternalID, unmatchedInternal = o.pairInternalLedger(ctx, cfg, assignResult.Matches, sourceByID, internalTxns, patterns)
	}

	result := &domain.ReconciliationResult{OrganizationID: organizationID}

	for i := range assignResult.Matches {
		m := &assignResult.Matches[i]
		m.ID = o.idGen()
		m.OrganizationID = organizationID
		classify(m, cfg)
		if internalID, ok := matchInternalID[i]; ok {
			m.InternalID = internalID
		}

		if err := o.matches.Create(ctx, *m); err != nil {
			return nil, apperr.Internal("failed to persist match", err)
		}
		settledIDs := append(append([]string{}, m.SourceIDs...), m.TargetIDs...)
		if m.InternalID != "" {
			settledIDs = append(settledIDs, m.InternalID)
		}
		if err := o.transactions.MarkMatched(ctx, organizationID, settledIDs, m.ID); err != nil {
			return nil, apperr.Internal("failed to mark transactions matched", err)
		}
		o.bumpMatchedPattern(ctx, organizationID, *m)
		o.logAudit(ctx, organizationID, "match", m.ID, "match_created", map[string]string{
			"match_type": string(m.MatchType), "score": strconv.Itoa(m.Score.Total),
		})
		result.Matches = append(result.Matches, *m)

		if m.MatchType == domain.MatchAuto && m.Score.Total >= cfg.AutoJEThreshold && !m.IsSplit() {
			draft, err := o.generateDraft(*m, sourceByID, targetByID)
			if err != nil {
				logger.GetLogger().WithError(err).WithField("match_id", m.ID).Warn("orchestrator: draft journal generation skipped")
			} else if draft != nil {
				if err := o.drafts.Create(ctx, *draft); err != nil {
					return nil, apperr.Internal("failed to persist draft journal entry", err)
				}
				o.logAudit(ctx, organizationID, "draft_journal_entry", draft.ID, "draft_journal_created", map[string]string{"match_id": m.ID})
				result.DraftJournalEntries = append(result.DraftJournalEntries, *draft)
			}
		}

		if m.MatchType == domain.MatchManual && m.Score.Total >= cfg.ReviewRequiredThreshold {
			// kept as a match but also surfaced for review, rather than
			// silently auto-confirmed below AUTO_MATCH_THRESHOLD
			if exc, err := o.exceptions.Route(ctx, o.idGen, organizationID, domain.ExceptionAmountVariance, sumAmount(m, sourceByID), append([]string{}, m.SourceIDs...)); err == nil {
				o.logAudit(ctx, organizationID, "exception", exc.ID, "exception_routed", map[string]string{"match_id": m.ID, "type": string(exc.Type)})
				result.Exceptions = append(result.Exceptions, *exc)
			}
		}
	}

	for _, id := range assignResult.UnmatchedSource {
		amount := 0.0
		if t, ok := sourceByID[id]; ok {
			amount, _ = t.Amount.Amount().Float64()
		}
		exc, err := o.exceptions.Route(ctx, o.idGen, organizationID, domain.ExceptionNoMatch, amount, []string{id})
		if err != nil {
			logger.GetLogger().WithError(err).Warn("orchestrator: failed to route unmatched source exception")
			continue
		}
		o.logAudit(ctx, organizationID, "exception", exc.ID, "exception_routed", map[string]string{"type": string(exc.Type)})
		result.Exceptions = append(result.Exceptions, *exc)
	}
	for _, id := range unmatchedInternal {
		amount := 0.0
		if t, ok := internalByID[id]; ok {
			amount, _ = t.Amount.Amount().Float64()
		}
		exc, err := o.exceptions.Route(ctx, o.idGen, organizationID, domain.ExceptionNoMatch, amount, []string{id})
		if err != nil {
			logger.GetLogger().WithError(err).Warn("orchestrator: failed to route unmatched internal-ledger exception")
			continue
		}
		o.logAudit(ctx, organizationID, "exception", exc.ID, "exception_routed", map[string]string{"type": string(exc.Type)})
		result.Exceptions = append(result.Exceptions, *exc)
	}
	result.UnmatchedSource = assignResult.UnmatchedSource
	result.UnmatchedTarget = assignResult.UnmatchedTarget

	// Per testable property 8, the exception list's priority order must be
	// non-increasing; matches and unmatched sources are appended above in
	// creation order, not priority order, so sort explicitly here rather
	// than relying on callers to re-sort (exception.Router.List already
	// does this for its own listing path; this path bypasses List).
	sort.SliceStable(result.Exceptions, func(i, j int) bool {
		if result.Exceptions[i].PriorityRank != result.Exceptions[j].PriorityRank {
			return result.Exceptions[i].PriorityRank > result.Exceptions[j].PriorityRank
		}
		return result.Exceptions[i].CreatedAt.After(result.Exceptions[j].CreatedAt)
	})

	total := len(sourceTxns)
	if total > 0 {
		result.MatchRate = float64(total-len(result.UnmatchedSource)) / float64(total)
	}

	return result, nil
}

// classify sets the Match's final MatchType from the provisional
// assignment-engine output using AUTO_MATCH_THRESHOLD and
// REVIEW_REQUIRED_THRESHOLD, per spec.md §4.D step 5.
func classify(m *domain.Match, cfg domain.ReconciliationConfig) {
	switch {
	case m.Score.Total >= cfg.AutoMatchThreshold:
		m.MatchType = domain.MatchAuto
	default:
		m.MatchType = domain.MatchManual
	}
}

func (o *Orchestrator) generateDraft(m domain.Match, sourceByID, targetByID map[string]domain.Transaction) (*domain.DraftJournalEntry, error) {
	if len(m.SourceIDs) != 1 || len(m.TargetIDs) != 1 {
		return nil, nil
	}
	source, ok := sourceByID[m.SourceIDs[0]]
	if !ok {
		return nil, apperr.Internal("source transaction missing for draft generation", nil)
	}
	target, ok := targetByID[m.TargetIDs[0]]
	if !ok {
		return nil, apperr.Internal("target transaction missing for draft generation", nil)
	}
	gross := source.Amount
	net := target.Amount
	if net.GreaterThan(gross) {
		gross, net = net, gross
	}
	return journal.Generate(m, gross, net, 0, o.mapping, o.idGen)
}

// pairInternalLedger implements spec.md §4.D step 4's second pass: each
// confirmed (non-split) 2-way match is paired against its best-scoring
// internal-ledger counterpart, using the same hard gate and scorer as the
// 2-way pass, with the same greedy highest-score-first, deterministic
// tie-break assignment. Split/group matches are excluded, since the spec
// leaves undefined how a combined multi-transaction amount should be
// compared against a single internal-ledger entry.
//
// Returns the internal transaction ID assigned to each eligible match
// (keyed by its index into matches) and the internal-ledger IDs left
// unmatched.
func (o *Orchestrator) pairInternalLedger(ctx context.Context, cfg domain.ReconciliationConfig, matches []domain.Match, sourceByID map[string]domain.Transaction, internalTxns []domain.Transaction, patterns []domain.Pattern) (map[int]string, []string) {
	assigned := make(map[int]string)
	if len(internalTxns) == 0 {
		all := make([]string, 0, len(internalTxns))
		for _, t := range internalTxns {
			all = append(all, t.ID)
		}
		return assigned, all
	}

	var eligibleIdx []int
	var matchCandidates []assignment.Candidate
	for i, m := range matches {
		if m.IsSplit() {
			continue
		}
		source, ok := sourceByID[m.SourceIDs[0]]
		if !ok {
			continue
		}
		eligibleIdx = append(eligibleIdx, i)
		matchCandidates = append(matchCandidates, toCandidates([]domain.Transaction{source})[0])
	}

	assignResult, err := assignment.Run(ctx, assignment.Config{
		AmountTolerancePct: cfg.AmountTolerancePct,
		DateWindowDays:     cfg.DateWindowDays,
		MatchThreshold:     cfg.MatchThreshold,
		SplitMatchPenalty:  cfg.SplitMatchPenalty,
		MaxMatrixCells:     cfg.MaxMatrixCells,
		ScoreWorkers:       cfg.ScoreWorkers,
	}, matchCandidates, toCandidates(internalTxns), patterns)
	if err != nil {
		logger.GetLogger().WithError(err).Warn("orchestrator: internal-ledger pairing pass skipped")
		all := make([]string, 0, len(internalTxns))
		for _, t := range internalTxns {
			all = append(all, t.ID)
		}
		return assigned, all
	}

	bySourceID := make(map[string]int, len(eligibleIdx))
	for pos, idx := range eligibleIdx {
		bySourceID[matchCandidates[pos].Pair.ID] = idx
	}
	for _, pairing := range assignResult.Matches {
		idx, ok := bySourceID[pairing.SourceIDs[0]]
		if !ok {
			continue
		}
		assigned[idx] = pairing.TargetIDs[0]
	}
	return assigned, assignResult.UnmatchedTarget
}

func (o *Orchestrator) bumpMatchedPattern(ctx context.Context, organizationID string, m domain.Match) {
	if m.Score.MatchedPatternID == "" {
		return
	}
	if err := o.patterns.IncrementUsage(ctx, organizationID, m.Score.MatchedPatternID); err != nil {
		logger.GetLogger().WithError(err).Warn("orchestrator: failed to bump pattern usage")
	}
}

func sumAmount(m *domain.Match, sourceByID map[string]domain.Transaction) float64 {
	total := 0.0
	for _, id := range m.SourceIDs {
		if t, ok := sourceByID[id]; ok {
			f, _ := t.Amount.Amount().Float64()
			total += f
		}
	}
	return total
}

func indexByID(txns []domain.Transaction) map[string]domain.Transaction {
	out := make(map[string]domain.Transaction, len(txns))
	for _, t := range txns {
		out[t.ID] = t
	}
	return out
}

func toCandidates(txns []domain.Transaction) []assignment.Candidate {
	out := make([]assignment.Candidate, 0, len(txns))
	for _, t := range txns {
		amount, _ := t.Amount.Amount().Float64()
		out = append(out, assignment.Candidate{Pair: scorer.Pair{
			ID:          t.ID,
			Amount:      amount,
			Currency:    t.Amount.Currency().String(),
			Date:        t.ValueDate.Unix() / 86400,
			Description: t.Description,
			Reference:   t.Reference,
		}})
	}
	return out
}
