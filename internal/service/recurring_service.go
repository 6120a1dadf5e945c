package service

import (
	"context"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/internal/recurring"
)

// RecurringRepository is the persistence contract RecurringService
// depends on, satisfied by repository.RecurringRepository.
type RecurringRepository interface {
	Create(ctx context.Context, rule domain.RecurringRule) error
	Update(ctx context.Context, rule domain.RecurringRule) error
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.RecurringRule, error)
}

// RecurringService implements the Recurring Rule CRUD external contract
// plus the process-one-invoice operation the AP pipeline calls when an
// invoice is extracted.
type RecurringService struct {
	repo  RecurringRepository
	idGen func() string
}

func NewRecurringService(repo RecurringRepository, idGen func() string) *RecurringService {
	return &RecurringService{repo: repo, idGen: idGen}
}

func (s *RecurringService) Create(ctx context.Context, rule domain.RecurringRule) (*domain.RecurringRule, error) {
	rule.ID = s.idGen()
	rule.Enabled = true
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *RecurringService) Update(ctx context.Context, rule domain.RecurringRule) (*domain.RecurringRule, error) {
	rule.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Delete disables a rule rather than removing it, since recurring rules
// carry rolling history (total_invoices, total_amount) worth keeping.
func (s *RecurringService) Delete(ctx context.Context, organizationID, ruleID string) error {
	rules, err := s.repo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if r.ID == ruleID {
			r.Enabled = false
			return s.repo.Update(ctx, r)
		}
	}
	return apperr.NotFound("recurring rule not found")
}

func (s *RecurringService) List(ctx context.Context, organizationID string) ([]domain.RecurringRule, error) {
	return s.repo.ListByOrganization(ctx, organizationID)
}

// Process matches an invoice against the organization's recurring rules
// and persists the rule's updated rolling stats when one matches.
func (s *RecurringService) Process(ctx context.Context, organizationID, vendor string, amount float64, invoiceDate time.Time) (*domain.RecurringInvoiceResult, error) {
	rules, err := s.repo.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	result, updatedRule := recurring.Process(rules, vendor, amount, invoiceDate)
	if result == nil {
		return nil, nil
	}
	if err := s.repo.Update(ctx, *updatedRule); err != nil {
		return nil, err
	}
	return result, nil
}
