package apstate

import (
	"context"
	"sync"

	"reconcore/internal/domain"
)

// memoryRepo is a minimal in-process Repository used only by this
// package's tests.
type memoryRepo struct {
	mu     sync.Mutex
	items  map[string]*domain.Invoice
	audit  []domain.AuditEvent
	idemp  map[string]*domain.AuditEvent // key: apItemID|idempotencyKey
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]*domain.Invoice), idemp: make(map[string]*domain.AuditEvent)}
}

func (r *memoryRepo) GetForUpdate(_ context.Context, apItemID string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.items[apItemID]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *memoryRepo) Save(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.items[inv.ID] = &cp
	return nil
}

func (r *memoryRepo) AppendAudit(_ context.Context, event domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, event)
	if event.IdempotencyKey != "" {
		e := event
		r.idemp[event.EntityID+"|"+event.IdempotencyKey] = &e
	}
	return nil
}

func (r *memoryRepo) FindByIdempotencyKey(_ context.Context, apItemID, idempotencyKey string) (*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idemp[apItemID+"|"+idempotencyKey], nil
}
