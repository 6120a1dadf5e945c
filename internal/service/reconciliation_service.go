package service

import (
	"context"

	"github.com/google/uuid"

	"reconcore/internal/domain"
	"reconcore/internal/orchestrator"
)

// ReconciliationService fronts the Reconciliation Orchestrator for the
// HTTP layer, passing each request straight to Orchestrator.Run.
type ReconciliationService interface {
	Reconcile(ctx context.Context, organizationID string, cfg domain.ReconciliationConfig, sourceKind, targetKind, internalKind domain.TransactionSource) (*domain.ReconciliationResult, error)
}

type reconciliationService struct {
	orch *orchestrator.Orchestrator
}

func NewReconciliationService(orch *orchestrator.Orchestrator) ReconciliationService {
	return &reconciliationService{orch: orch}
}

func (s *reconciliationService) Reconcile(ctx context.Context, organizationID string, cfg domain.ReconciliationConfig, sourceKind, targetKind, internalKind domain.TransactionSource) (*domain.ReconciliationResult, error) {
	return s.orch.Run(ctx, organizationID, cfg, sourceKind, targetKind, internalKind)
}

// NewID is the engine's default ID generator, shared across services that
// need one but don't otherwise own an idiomatic source of IDs.
func NewID() string {
	return uuid.New().String()
}
