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

// TransactionRepository persists Transactions and answers the queries the
// Reconciliation Orchestrator needs: the unreconciled set for a given
// source, and a bulk "mark matched" update once a batch assigns them.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	BulkCreate(ctx context.Context, transactions []domain.Transaction) error
	GetByID(ctx context.Context, organizationID, id string) (*domain.Transaction, error)
	ListUnreconciled(ctx context.Context, organizationID string, source domain.TransactionSource) ([]domain.Transaction, error)
	MarkMatched(ctx context.Context, organizationID string, transactionIDs []string, matchID string) error
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	metadata, err := json.Marshal(tx.ExtraMetadata)
	if err != nil {
		return apperr.Internal("failed to marshal transaction metadata", err)
	}

	query := `
		INSERT INTO transactions (
			id, organization_id, amount, currency, value_date, description,
			reference, counterparty, source, source_id, status, extra_metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		tx.ID, tx.OrganizationID, tx.Amount.Amount(), tx.Amount.Currency().String(), tx.ValueDate,
		tx.Description, tx.Reference, tx.Counterparty, tx.Source, tx.SourceID, tx.Status, metadata,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		logger.GetLogger().WithError(err).Error("transaction repository: create failed")
		return apperr.Internal("failed to create transaction", err)
	}
	return nil
}

func (r *transactionRepository) BulkCreate(ctx context.Context, transactions []domain.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("failed to begin bulk transaction insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, organization_id, amount, currency, value_date, description,
			reference, counterparty, source, source_id, status, extra_metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return apperr.Internal("failed to prepare bulk insert", err)
	}
	defer stmt.Close()

	for _, t := range transactions {
		metadata, _ := json.Marshal(t.ExtraMetadata)
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.OrganizationID, t.Amount.Amount(), t.Amount.Currency().String(), t.ValueDate,
			t.Description, t.Reference, t.Counterparty, t.Source, t.SourceID, t.Status, metadata,
		); err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", t.ID).Error("transaction repository: bulk insert row failed")
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("failed to commit bulk transaction insert", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Transaction, error) {
	query := `
		SELECT id, organization_id, amount, currency, value_date, description,
			reference, counterparty, source, source_id, status, extra_metadata, created_at, updated_at
		FROM transactions
		WHERE organization_id = $1 AND id = $2
	`
	row := r.db.QueryRowContext(ctx, query, organizationID, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("transaction not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to get transaction", err)
	}
	return t, nil
}

func (r *transactionRepository) ListUnreconciled(ctx context.Context, organizationID string, source domain.TransactionSource) ([]domain.Transaction, error) {
	query := `
		SELECT id, organization_id, amount, currency, value_date, description,
			reference, counterparty, source, source_id, status, extra_metadata, created_at, updated_at
		FROM transactions
		WHERE organization_id = $1 AND source = $2 AND status = $3
		ORDER BY value_date
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID, source, domain.TxnPending)
	if err != nil {
		return nil, apperr.Internal("failed to list unreconciled transactions", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("transaction repository: scan failed")
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *transactionRepository) MarkMatched(ctx context.Context, organizationID string, transactionIDs []string, matchID string) error {
	if len(transactionIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("failed to begin mark-matched transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = now() WHERE organization_id = $2 AND id = $3
	`)
	if err != nil {
		return apperr.Internal("failed to prepare mark-matched statement", err)
	}
	defer stmt.Close()

	for _, id := range transactionIDs {
		if _, err := stmt.ExecContext(ctx, domain.TxnMatched, organizationID, id); err != nil {
			return apperr.Internal("failed to mark transaction matched", err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount, currency string
	var metadata []byte
	if err := row.Scan(
		&t.ID, &t.OrganizationID, &amount, &currency, &t.ValueDate, &t.Description,
		&t.Reference, &t.Counterparty, &t.Source, &t.SourceID, &t.Status, &metadata,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m, err := money.NewFromString(amount, currency)
	if err != nil {
		return nil, err
	}
	t.Amount = m
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &t.ExtraMetadata)
	}
	return &t, nil
}
