package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// RecurringRepository persists RecurringRules: user-defined and
// auto-proposed vendor cadences consumed by internal/recurring.
type RecurringRepository struct {
	db *sql.DB
}

func NewRecurringRepository(db *sql.DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func (r *RecurringRepository) Create(ctx context.Context, rule domain.RecurringRule) error {
	query := `
		INSERT INTO recurring_rules (
			id, organization_id, vendor, vendor_aliases, expected_frequency, expected_amount,
			amount_tolerance_pct, action, require_amount_match, default_gl_code, enabled,
			last_invoice_date, next_expected_date, total_invoices, total_amount, confidence,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
	`
	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.Vendor, pq.Array(rule.VendorAliases), rule.ExpectedFrequency, rule.ExpectedAmount,
		rule.AmountTolerance, rule.Action, rule.RequireAmountMatch, rule.DefaultGLCode, rule.Enabled,
		rule.LastInvoiceDate, rule.NextExpectedDate, rule.TotalInvoices, rule.TotalAmount, rule.Confidence,
	)
	if err != nil {
		logger.GetLogger().WithError(err).Error("recurring repository: create failed")
		return apperr.Internal("failed to create recurring rule", err)
	}
	return nil
}

func (r *RecurringRepository) Update(ctx context.Context, rule domain.RecurringRule) error {
	query := `
		UPDATE recurring_rules SET
			vendor = $1, vendor_aliases = $2, expected_frequency = $3, expected_amount = $4,
			amount_tolerance_pct = $5, action = $6, require_amount_match = $7, default_gl_code = $8,
			enabled = $9, last_invoice_date = $10, next_expected_date = $11, total_invoices = $12,
			total_amount = $13, confidence = $14, updated_at = now()
		WHERE id = $15 AND organization_id = $16
	`
	res, err := r.db.ExecContext(ctx, query,
		rule.Vendor, pq.Array(rule.VendorAliases), rule.ExpectedFrequency, rule.ExpectedAmount,
		rule.AmountTolerance, rule.Action, rule.RequireAmountMatch, rule.DefaultGLCode,
		rule.Enabled, rule.LastInvoiceDate, rule.NextExpectedDate, rule.TotalInvoices,
		rule.TotalAmount, rule.Confidence, rule.ID, rule.OrganizationID,
	)
	if err != nil {
		return apperr.Internal("failed to update recurring rule", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("recurring rule not found")
	}
	return nil
}

func (r *RecurringRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.RecurringRule, error) {
	query := `
		SELECT id, organization_id, vendor, vendor_aliases, expected_frequency, expected_amount,
			amount_tolerance_pct, action, require_amount_match, default_gl_code, enabled,
			last_invoice_date, next_expected_date, total_invoices, total_amount, confidence,
			created_at, updated_at
		FROM recurring_rules
		WHERE organization_id = $1
		ORDER BY vendor
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, apperr.Internal("failed to list recurring rules", err)
	}
	defer rows.Close()

	var out []domain.RecurringRule
	for rows.Next() {
		var rule domain.RecurringRule
		var lastInvoiceDate, nextExpectedDate sql.NullTime
		if err := rows.Scan(
			&rule.ID, &rule.OrganizationID, &rule.Vendor, pq.Array(&rule.VendorAliases), &rule.ExpectedFrequency, &rule.ExpectedAmount,
			&rule.AmountTolerance, &rule.Action, &rule.RequireAmountMatch, &rule.DefaultGLCode, &rule.Enabled,
			&lastInvoiceDate, &nextExpectedDate, &rule.TotalInvoices, &rule.TotalAmount, &rule.Confidence,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			logger.GetLogger().WithError(err).Error("recurring repository: scan failed")
			continue
		}
		if lastInvoiceDate.Valid {
			rule.LastInvoiceDate = &lastInvoiceDate.Time
		}
		if nextExpectedDate.Valid {
			rule.NextExpectedDate = &nextExpectedDate.Time
		}
		out = append(out, rule)
	}
	return out, nil
}
