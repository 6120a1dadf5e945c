package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// DraftRepository persists draft journal entries generated by the Draft
// Journal Generator.
type DraftRepository interface {
	Create(ctx context.Context, d domain.DraftJournalEntry) error
	UpdateStatus(ctx context.Context, organizationID, id string, status domain.DraftStatus, externalDocRef string) error
	ListByStatus(ctx context.Context, organizationID string, status domain.DraftStatus) ([]domain.DraftJournalEntry, error)
}

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(ctx context.Context, d domain.DraftJournalEntry) error {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return apperr.Internal("failed to marshal journal lines", err)
	}
	query := `
		INSERT INTO draft_journal_entries (
			id, organization_id, match_id, lines, status, external_doc_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`
	if _, err := r.db.ExecContext(ctx, query, d.ID, d.OrganizationID, d.MatchID, lines, d.Status, d.ExternalDocRef); err != nil {
		logger.GetLogger().WithError(err).Error("draft repository: create failed")
		return apperr.Internal("failed to persist draft journal entry", err)
	}
	return nil
}

func (r *draftRepository) UpdateStatus(ctx context.Context, organizationID, id string, status domain.DraftStatus, externalDocRef string) error {
	query := `
		UPDATE draft_journal_entries
		SET status = $1, external_doc_ref = $2, updated_at = now()
		WHERE organization_id = $3 AND id = $4
	`
	res, err := r.db.ExecContext(ctx, query, status, externalDocRef, organizationID, id)
	if err != nil {
		return apperr.Internal("failed to update draft journal entry status", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("draft journal entry not found")
	}
	return nil
}

func (r *draftRepository) ListByStatus(ctx context.Context, organizationID string, status domain.DraftStatus) ([]domain.DraftJournalEntry, error) {
	query := `
		SELECT id, organization_id, match_id, lines, status, external_doc_ref, created_at, updated_at
		FROM draft_journal_entries
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID, status)
	if err != nil {
		return nil, apperr.Internal("failed to list draft journal entries", err)
	}
	defer rows.Close()

	var out []domain.DraftJournalEntry
	for rows.Next() {
		var d domain.DraftJournalEntry
		var lines []byte
		if err := rows.Scan(&d.ID, &d.OrganizationID, &d.MatchID, &lines, &d.Status, &d.ExternalDocRef, &d.CreatedAt, &d.UpdatedAt); err != nil {
			logger.GetLogger().WithError(err).Error("draft repository: scan failed")
			continue
		}
		_ = json.Unmarshal(lines, &d.Lines)
		out = append(out, d)
	}
	return out, nil
}
