// Package learning implements the Learning & Correction Service: it
// records human corrections, derives gl_code/vendor_alias/approval rules
// from them, and answers suggestion queries. The invoice categorizer is
// the only caller of Suggest; the scorer's pattern boost and the
// recurring-rule engine do not read learned rules.
package learning

import (
	"context"
	"fmt"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

const (
	glRuleBaseConfidence   = 0.7
	glRuleReinforceStep    = 0.1
	glRuleConfidenceCap    = 0.99
	vendorAliasConfidence  = 0.9
	approvalBiasStep       = 0.1
	approvalBiasCap        = 0.3
)

// Repository is the persistence contract the Learning Service depends
// on. Corrections are append-only; rules are upserted in place.
type Repository interface {
	AppendCorrection(ctx context.Context, c domain.Correction) error
	CountCorrections(ctx context.Context, organizationID string, ruleType domain.CorrectionType, key string) (int, error)
	GetRule(ctx context.Context, organizationID string, ruleType domain.CorrectionType, key string) (*domain.LearnedRule, error)
	UpsertRule(ctx context.Context, rule domain.LearnedRule) error
}

// Service implements record_correction and suggest from spec.md §4.I.
type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordResult is returned by RecordCorrection: a summary of what was
// learned plus, when applicable, a broadening question a human could be
// asked next (e.g. "apply this to all future invoices from this
// vendor?"), mirroring the original implementation's conversational
// follow-up.
type RecordResult struct {
	CorrectionID     string
	RulesCreated     int
	RulesUpdated     int
	PreferencesUpdated int
	Message          string
	BroadenPrompt    string
}

// RecordCorrection appends the correction to the immutable log and
// updates the derived rule set. If rule derivation fails, the correction
// is still considered recorded and the failure is logged; the failed
// derivation is not replayed, so the next correction for the same key
// derives only from that correction and the rule as stored.
func (s *Service) RecordCorrection(ctx context.Context, idGen func() string, c domain.Correction) (*RecordResult, error) {
	c.ID = idGen()
	c.CreatedAt = time.Now()

	if err := s.repo.AppendCorrection(ctx, c); err != nil {
		return nil, apperr.Internal("failed to append correction", err)
	}

	result := &RecordResult{CorrectionID: c.ID}

	switch c.Type {
	case domain.CorrectionGLCode:
		created, err := s.learnGLCode(ctx, c)
		if err != nil {
			logger.GetLogger().WithError(err).Warn("learning: gl_code rule derivation failed")
			break
		}
		if created {
			result.RulesCreated++
		} else {
			result.RulesUpdated++
		}
		result.BroadenPrompt = fmt.Sprintf("Use GL code %s for all future invoices from %s?", c.Corrected, c.Context.Vendor)

	case domain.CorrectionVendorAlias:
		created, err := s.learnVendorAlias(ctx, c)
		if err != nil {
			logger.GetLogger().WithError(err).Warn("learning: vendor_alias rule derivation failed")
			break
		}
		if created {
			result.RulesCreated++
		} else {
			result.RulesUpdated++
		}

	case domain.CorrectionApproval:
		if err := s.learnApprovalBias(ctx, c); err != nil {
			logger.GetLogger().WithError(err).Warn("learning: approval bias derivation failed")
			break
		}
		result.PreferencesUpdated++
	}

	count, err := s.repo.CountCorrections(ctx, c.OrganizationID, c.Type, correctionKey(c))
	if err == nil {
		result.Message = fmt.Sprintf("learned from %d previous correction(s)", count)
	}

	return result, nil
}

func correctionKey(c domain.Correction) string {
	if c.Context.Vendor != "" {
		return c.Context.Vendor
	}
	return c.Original
}

func (s *Service) learnGLCode(ctx context.Context, c domain.Correction) (bool, error) {
	key := c.Context.Vendor
	if key == "" {
		key = c.Original
	}
	existing, err := s.repo.GetRule(ctx, c.OrganizationID, domain.CorrectionGLCode, key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		rule := domain.LearnedRule{
			OrganizationID: c.OrganizationID,
			RuleType:       domain.CorrectionGLCode,
			Key:            key,
			Value:          c.Corrected,
			Confidence:     glRuleBaseConfidence,
			ReinforceCount: 1,
			UpdatedAt:      time.Now(),
		}
		return true, s.repo.UpsertRule(ctx, rule)
	}

	confidence := existing.Confidence
	if existing.Value == c.Corrected {
		confidence += glRuleReinforceStep
		if confidence > glRuleConfidenceCap {
			confidence = glRuleConfidenceCap
		}
	} else {
		confidence = glRuleBaseConfidence
	}
	existing.Value = c.Corrected
	existing.Confidence = confidence
	existing.ReinforceCount++
	existing.UpdatedAt = time.Now()
	return false, s.repo.UpsertRule(ctx, *existing)
}

func (s *Service) learnVendorAlias(ctx context.Context, c domain.Correction) (bool, error) {
	key := c.Original
	existing, err := s.repo.GetRule(ctx, c.OrganizationID, domain.CorrectionVendorAlias, key)
	if err != nil {
		return false, err
	}
	rule := domain.LearnedRule{
		OrganizationID: c.OrganizationID,
		RuleType:       domain.CorrectionVendorAlias,
		Key:            key,
		Value:          c.Corrected,
		Confidence:     vendorAliasConfidence,
		ReinforceCount: 1,
		UpdatedAt:      time.Now(),
	}
	if existing != nil {
		rule.ReinforceCount = existing.ReinforceCount + 1
	}
	return existing == nil, s.repo.UpsertRule(ctx, rule)
}

func (s *Service) learnApprovalBias(ctx context.Context, c domain.Correction) error {
	key := c.Context.Vendor
	if key == "" {
		key = c.Original
	}
	existing, err := s.repo.GetRule(ctx, c.OrganizationID, domain.CorrectionApproval, key)
	if err != nil {
		return err
	}
	adj := approvalBiasStep
	if c.Corrected == "reject" || c.Corrected == "down" {
		adj = -approvalBiasStep
	}
	rule := domain.LearnedRule{
		OrganizationID: c.OrganizationID,
		RuleType:       domain.CorrectionApproval,
		Key:            key,
		Confidence:     1,
		UpdatedAt:      time.Now(),
	}
	if existing != nil {
		rule.ThresholdAdj = existing.ThresholdAdj + adj
		rule.ReinforceCount = existing.ReinforceCount + 1
	} else {
		rule.ThresholdAdj = adj
		rule.ReinforceCount = 1
	}
	if rule.ThresholdAdj > approvalBiasCap {
		rule.ThresholdAdj = approvalBiasCap
	}
	if rule.ThresholdAdj < -approvalBiasCap {
		rule.ThresholdAdj = -approvalBiasCap
	}
	return s.repo.UpsertRule(ctx, rule)
}

// Suggestion is the result of Suggest: a rule-derived hint with a
// confidence and the "learned from N correction(s)" provenance message.
type Suggestion struct {
	Value      string
	Confidence float64
	Message    string
}

// Suggest returns a suggestion derived from the learned rule set for
// (organization, ruleType, key), or nil if no rule applies.
func (s *Service) Suggest(ctx context.Context, organizationID string, ruleType domain.CorrectionType, key string) (*Suggestion, error) {
	rule, err := s.repo.GetRule(ctx, organizationID, ruleType, key)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}
	count, _ := s.repo.CountCorrections(ctx, organizationID, ruleType, key)
	return &Suggestion{
		Value:      rule.Value,
		Confidence: rule.Confidence,
		Message:    fmt.Sprintf("learned from %d previous correction(s)", count),
	}, nil
}
