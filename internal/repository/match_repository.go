package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// MatchRepository persists confirmed Matches produced by the Assignment
// Engine / Reconciliation Orchestrator.
type MatchRepository interface {
	Create(ctx context.Context, m domain.Match) error
	GetByID(ctx context.Context, organizationID, id string) (*domain.Match, error)
}

type matchRepository struct {
	db *sql.DB
}

func NewMatchRepository(db *sql.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Create(ctx context.Context, m domain.Match) error {
	score, err := json.Marshal(m.Score)
	if err != nil {
		return apperr.Internal("failed to marshal score breakdown", err)
	}

	query := `
		INSERT INTO matches (
			id, organization_id, source_ids, target_ids, score, total_score,
			match_type, internal_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.OrganizationID, pq.Array(m.SourceIDs), pq.Array(m.TargetIDs), score,
		m.Score.Total, m.MatchType, m.InternalID,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("match repository: create failed")
		return apperr.Internal("failed to persist match", err)
	}
	return nil
}

func (r *matchRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Match, error) {
	query := `
		SELECT id, organization_id, source_ids, target_ids, score, match_type, internal_id, created_at::text
		FROM matches
		WHERE organization_id = $1 AND id = $2
	`
	var m domain.Match
	var score []byte
	err := r.db.QueryRowContext(ctx, query, organizationID, id).Scan(
		&m.ID, &m.OrganizationID, pq.Array(&m.SourceIDs), pq.Array(&m.TargetIDs), &score, &m.MatchType, &m.InternalID, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("match not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to get match", err)
	}
	if len(score) > 0 {
		_ = json.Unmarshal(score, &m.Score)
	}
	return &m, nil
}
