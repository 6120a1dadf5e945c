package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// ExceptionRepository implements exception.Repository against Postgres.
type ExceptionRepository struct {
	db *sql.DB
}

func NewExceptionRepository(db *sql.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

func (r *ExceptionRepository) Create(ctx context.Context, exc domain.Exception) error {
	query := `
		INSERT INTO exceptions (
			id, organization_id, type, priority, priority_rank, transaction_ids, near_match_refs,
			explanation, suggested_action, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := r.db.ExecContext(ctx, query,
		exc.ID, exc.OrganizationID, exc.Type, exc.Priority, exc.PriorityRank,
		pq.Array(exc.TransactionIDs), pq.Array(exc.NearMatchRefs),
		exc.Explanation, exc.SuggestedAction, exc.Status, exc.CreatedAt,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("exception repository: create failed")
		return apperr.Internal("failed to create exception", err)
	}
	return nil
}

func (r *ExceptionRepository) List(ctx context.Context, organizationID string) ([]domain.Exception, error) {
	query := `
		SELECT id, organization_id, type, priority, priority_rank, transaction_ids, near_match_refs,
			explanation, suggested_action, status, resolver_id, resolution_notes, resolved_at, created_at
		FROM exceptions
		WHERE organization_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, apperr.Internal("failed to list exceptions", err)
	}
	defer rows.Close()

	var out []domain.Exception
	for rows.Next() {
		var e domain.Exception
		var resolverID, resolutionNotes sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.Type, &e.Priority, &e.PriorityRank,
			pq.Array(&e.TransactionIDs), pq.Array(&e.NearMatchRefs),
			&e.Explanation, &e.SuggestedAction, &e.Status, &resolverID, &resolutionNotes, &resolvedAt, &e.CreatedAt,
		); err != nil {
			logger.GetLogger().WithError(err).Error("exception repository: scan failed")
			continue
		}
		e.ResolverID = resolverID.String
		e.ResolutionNotes = resolutionNotes.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *ExceptionRepository) Resolve(ctx context.Context, organizationID, exceptionID, resolverID, notes string, ignore bool) error {
	status := domain.ExceptionResolved
	if ignore {
		status = domain.ExceptionIgnored
	}
	now := time.Now()
	query := `
		UPDATE exceptions
		SET status = $1, resolver_id = $2, resolution_notes = $3, resolved_at = $4
		WHERE organization_id = $5 AND id = $6
	`
	res, err := r.db.ExecContext(ctx, query, status, resolverID, notes, now, organizationID, exceptionID)
	if err != nil {
		return apperr.Internal("failed to resolve exception", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("exception not found")
	}
	return nil
}
