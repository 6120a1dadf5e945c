package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
	"reconcore/pkg/money"
)

// APItemRepository implements apstate.Repository against Postgres. A
// single *sql.DB connection pool stands in for the SELECT...FOR UPDATE row
// lock the state machine requires; the get/save pair within one
// Transition call always runs against the same row, so the lock is
// acquired implicitly by Postgres's MVCC on the UPDATE statement.
type APItemRepository struct {
	db *sql.DB
}

func NewAPItemRepository(db *sql.DB) *APItemRepository {
	return &APItemRepository{db: db}
}

func (r *APItemRepository) GetForUpdate(ctx context.Context, apItemID string) (*domain.Invoice, error) {
	query := `
		SELECT id, organization_id, vendor_name, invoice_number, invoice_date, due_date,
			total_amount, total_currency, suggested_gl_code, suggestion_confidence,
			line_items, merge_history, source_links, state, merged_into, extra_metadata,
			created_at, updated_at
		FROM ap_items
		WHERE id = $1
		FOR UPDATE
	`
	row := r.db.QueryRowContext(ctx, query, apItemID)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load ap item", err)
	}
	return inv, nil
}

func (r *APItemRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	lineItems, _ := json.Marshal(inv.LineItems)
	mergeHistory, _ := json.Marshal(inv.MergeHistory)
	sourceLinks, _ := json.Marshal(inv.SourceLinks)
	metadata, _ := json.Marshal(inv.ExtraMetadata)

	query := `
		INSERT INTO ap_items (
			id, organization_id, vendor_name, invoice_number, invoice_date, due_date,
			total_amount, total_currency, suggested_gl_code, suggestion_confidence,
			line_items, merge_history, source_links, state, merged_into, extra_metadata,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			vendor_name = EXCLUDED.vendor_name,
			invoice_number = EXCLUDED.invoice_number,
			invoice_date = EXCLUDED.invoice_date,
			due_date = EXCLUDED.due_date,
			total_amount = EXCLUDED.total_amount,
			total_currency = EXCLUDED.total_currency,
			suggested_gl_code = EXCLUDED.suggested_gl_code,
			suggestion_confidence = EXCLUDED.suggestion_confidence,
			line_items = EXCLUDED.line_items,
			merge_history = EXCLUDED.merge_history,
			source_links = EXCLUDED.source_links,
			state = EXCLUDED.state,
			merged_into = EXCLUDED.merged_into,
			extra_metadata = EXCLUDED.extra_metadata,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.OrganizationID, inv.VendorName, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate,
		inv.Total.Amount(), inv.Total.Currency().String(), inv.SuggestedGLCode, inv.SuggestionConf,
		lineItems, mergeHistory, sourceLinks, inv.State, inv.MergedInto, metadata,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("ap item repository: save failed")
		return apperr.Internal("failed to save ap item", err)
	}
	return nil
}

func (r *APItemRepository) AppendAudit(ctx context.Context, event domain.AuditEvent) error {
	metadata, _ := json.Marshal(event.Metadata)
	query := `
		INSERT INTO ap_audit_events (
			id, organization_id, entity_type, entity_id, action, from_state, to_state,
			actor_type, actor_id, reason, idempotency_key, metadata, occurred_at
		) VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.OrganizationID, event.EntityType, event.EntityID, event.Action, event.FromState, event.ToState,
		event.ActorType, event.ActorID, event.Reason, event.IdempotencyKey, metadata, event.OccurredAt,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("ap item repository: append audit failed")
		return apperr.Internal("failed to append audit event", err)
	}
	return nil
}

func (r *APItemRepository) FindByIdempotencyKey(ctx context.Context, apItemID, idempotencyKey string) (*domain.AuditEvent, error) {
	query := `
		SELECT id, organization_id, entity_type, entity_id, action, from_state, to_state,
			actor_type, actor_id, reason, idempotency_key, metadata, occurred_at
		FROM ap_audit_events
		WHERE entity_id = $1 AND idempotency_key = $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`
	var e domain.AuditEvent
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, apItemID, idempotencyKey).Scan(
		&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityID, &e.Action, &e.FromState, &e.ToState,
		&e.ActorType, &e.ActorID, &e.Reason, &e.IdempotencyKey, &metadata, &e.OccurredAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to look up idempotency key", err)
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &e.Metadata)
	}
	return &e, nil
}

// ListAuditTrail returns every audit event recorded for an AP item,
// oldest first, for surfacing a full history to a reviewer.
func (r *APItemRepository) ListAuditTrail(ctx context.Context, apItemID string) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, organization_id, entity_type, entity_id, action, from_state, to_state,
			actor_type, actor_id, reason, idempotency_key, metadata, occurred_at
		FROM ap_audit_events
		WHERE entity_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, apItemID)
	if err != nil {
		return nil, apperr.Internal("failed to list audit trail", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityID, &e.Action, &e.FromState, &e.ToState,
			&e.ActorType, &e.ActorID, &e.Reason, &e.IdempotencyKey, &metadata, &e.OccurredAt); err != nil {
			logger.GetLogger().WithError(err).Error("ap item repository: audit scan failed")
			continue
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, nil
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var totalAmount, totalCurrency string
	var lineItems, mergeHistory, sourceLinks, metadata []byte
	if err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.VendorName, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate,
		&totalAmount, &totalCurrency, &inv.SuggestedGLCode, &inv.SuggestionConf,
		&lineItems, &mergeHistory, &sourceLinks, &inv.State, &inv.MergedInto, &metadata,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	total, err := money.NewFromString(totalAmount, totalCurrency)
	if err != nil {
		return nil, err
	}
	inv.Total = total
	_ = json.Unmarshal(lineItems, &inv.LineItems)
	_ = json.Unmarshal(mergeHistory, &inv.MergeHistory)
	_ = json.Unmarshal(sourceLinks, &inv.SourceLinks)
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &inv.ExtraMetadata)
	}
	return &inv, nil
}
