package repository

import (
	"context"
	"database/sql"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// LearningRepository implements learning.Repository against Postgres: an
// append-only corrections table and an upserted learned_rules table keyed
// by (organization_id, rule_type, key).
type LearningRepository struct {
	db *sql.DB
}

func NewLearningRepository(db *sql.DB) *LearningRepository {
	return &LearningRepository{db: db}
}

func (r *LearningRepository) AppendCorrection(ctx context.Context, c domain.Correction) error {
	query := `
		INSERT INTO corrections (
			id, organization_id, type, original, corrected,
			context_vendor, context_amount, context_sender, context_invoice_id, context_match_id,
			user_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrganizationID, c.Type, c.Original, c.Corrected,
		c.Context.Vendor, c.Context.Amount, c.Context.Sender, c.Context.InvoiceID, c.Context.MatchID,
		c.UserID, c.CreatedAt,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("learning repository: append correction failed")
		return apperr.Internal("failed to append correction", err)
	}
	return nil
}

func (r *LearningRepository) CountCorrections(ctx context.Context, organizationID string, ruleType domain.CorrectionType, key string) (int, error) {
	query := `
		SELECT COUNT(*) FROM corrections
		WHERE organization_id = $1 AND type = $2 AND (context_vendor = $3 OR original = $3)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, organizationID, ruleType, key).Scan(&count); err != nil {
		return 0, apperr.Internal("failed to count corrections", err)
	}
	return count, nil
}

func (r *LearningRepository) GetRule(ctx context.Context, organizationID string, ruleType domain.CorrectionType, key string) (*domain.LearnedRule, error) {
	query := `
		SELECT organization_id, rule_type, key, value, confidence, threshold_adj, reinforce_count, updated_at
		FROM learned_rules
		WHERE organization_id = $1 AND rule_type = $2 AND key = $3
	`
	var rule domain.LearnedRule
	err := r.db.QueryRowContext(ctx, query, organizationID, ruleType, key).Scan(
		&rule.OrganizationID, &rule.RuleType, &rule.Key, &rule.Value, &rule.Confidence, &rule.ThresholdAdj, &rule.ReinforceCount, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to get learned rule", err)
	}
	return &rule, nil
}

func (r *LearningRepository) UpsertRule(ctx context.Context, rule domain.LearnedRule) error {
	query := `
		INSERT INTO learned_rules (organization_id, rule_type, key, value, confidence, threshold_adj, reinforce_count, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (organization_id, rule_type, key) DO UPDATE SET
			value = EXCLUDED.value,
			confidence = EXCLUDED.confidence,
			threshold_adj = EXCLUDED.threshold_adj,
			reinforce_count = EXCLUDED.reinforce_count,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.OrganizationID, rule.RuleType, rule.Key, rule.Value, rule.Confidence, rule.ThresholdAdj, rule.ReinforceCount, rule.UpdatedAt,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("learning repository: upsert rule failed")
		return apperr.Internal("failed to upsert learned rule", err)
	}
	return nil
}
