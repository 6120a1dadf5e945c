// Package patternstore persists the learned (source-pattern, target-pattern)
// boosts consumed by internal/scorer. Reads are many-and-free; writes are
// serialized by a mutex held inside each Store implementation.
package patternstore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// Store is the narrow interface the Scorer's callers and the Learning
// Service depend on.
type Store interface {
	Upsert(ctx context.Context, p domain.Pattern) error
	List(ctx context.Context, organizationID string) ([]domain.Pattern, error)
	IncrementUsage(ctx context.Context, organizationID, patternID string) error
}

type store struct {
	db *sql.DB
	mu sync.Mutex
}

// New constructs a Postgres-backed Store.
func New(db *sql.DB) Store {
	return &store{db: db}
}

func (s *store) Upsert(ctx context.Context, p domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Confidence = domain.ClampConfidence(p.Confidence)

	query := `
		INSERT INTO patterns (pattern_id, organization_id, source_pattern, target_pattern, confidence, match_count, last_used, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (pattern_id) DO UPDATE SET
			source_pattern = EXCLUDED.source_pattern,
			target_pattern = EXCLUDED.target_pattern,
			confidence = EXCLUDED.confidence,
			match_count = GREATEST(patterns.match_count, EXCLUDED.match_count),
			last_updated = now()
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.OrganizationID, p.SourcePattern, p.TargetPattern, p.Confidence, p.MatchCount, p.LastUsed)
	if err != nil {
		logger.GetLogger().WithError(err).Error("pattern store: upsert failed")
		return apperr.Internal("failed to upsert pattern", err)
	}
	return nil
}

// List returns a value-copied snapshot of all patterns active for an
// organization. Callers should take one snapshot at batch start and
// reuse it for the whole batch, per the Pattern Store's snapshot
// consistency contract.
func (s *store) List(ctx context.Context, organizationID string) ([]domain.Pattern, error) {
	query := `
		SELECT pattern_id, organization_id, source_pattern, target_pattern, confidence, match_count, last_used, last_updated
		FROM patterns
		WHERE organization_id = $1
		ORDER BY pattern_id
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("pattern store: list failed")
		return nil, apperr.Internal("failed to list patterns", err)
	}
	defer rows.Close()

	var patterns []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.SourcePattern, &p.TargetPattern, &p.Confidence, &p.MatchCount, &p.LastUsed, &p.LastUpdated); err != nil {
			logger.GetLogger().WithError(err).Error("pattern store: scan failed")
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (s *store) IncrementUsage(ctx context.Context, organizationID, patternID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE patterns
		SET match_count = match_count + 1, last_used = $3
		WHERE pattern_id = $1 AND organization_id = $2
	`
	_, err := s.db.ExecContext(ctx, query, patternID, organizationID, time.Now())
	if err != nil {
		logger.GetLogger().WithError(err).Error("pattern store: increment usage failed")
		return apperr.Internal("failed to increment pattern usage", err)
	}
	return nil
}
