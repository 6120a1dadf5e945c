// Package apstate implements the Invoice / AP Item finite state machine:
// idempotent transitions, a fixed transition table, and the merge/split
// operations that are state-machine-adjacent per spec.md §4.F.
package apstate

import (
	"context"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
)

// validTransitions is the exact transition table of spec.md §4.F,
// confirmed against the original implementation's VALID_TRANSITIONS map.
var validTransitions = map[domain.APState][]domain.APState{
	domain.APReceived:      {domain.APValidated},
	domain.APValidated:     {domain.APNeedsInfo, domain.APNeedsApproval},
	domain.APNeedsInfo:     {domain.APValidated},
	domain.APNeedsApproval: {domain.APApproved, domain.APRejected},
	domain.APApproved:      {domain.APReadyToPost, domain.APRejected},
	domain.APReadyToPost:   {domain.APPostedToERP, domain.APFailedPost},
	domain.APFailedPost:    {domain.APReadyToPost},
	domain.APPostedToERP:   {domain.APClosed},
	domain.APClosed:        {},
	domain.APRejected:      {},
}

// IsValidTransition reports whether `to` is reachable from `from` in one
// step.
func IsValidTransition(from, to domain.APState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionRequest is the input to Transition.
type TransitionRequest struct {
	APItemID       string
	ToState        domain.APState
	ActorType      string
	ActorID        string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// Repository is the persistence contract the state machine depends on.
// A single implementation must provide transactional semantics across
// GetForUpdate/Save/AppendAudit/FindByIdempotencyKey so a transition's
// item write and audit write commit atomically.
type Repository interface {
	GetForUpdate(ctx context.Context, apItemID string) (*domain.Invoice, error)
	Save(ctx context.Context, inv *domain.Invoice) error
	AppendAudit(ctx context.Context, event domain.AuditEvent) error
	FindByIdempotencyKey(ctx context.Context, apItemID, idempotencyKey string) (*domain.AuditEvent, error)
}

// Machine drives AP item transitions.
type Machine struct {
	repo Repository
}

func New(repo Repository) *Machine {
	return &Machine{repo: repo}
}

// Transition applies a single transition request. It is idempotent on
// IdempotencyKey: a repeat request with the same key and the same
// (from_state, to_state) returns the current item without re-emitting
// side effects.
func (m *Machine) Transition(ctx context.Context, req TransitionRequest) (*domain.Invoice, error) {
	inv, err := m.repo.GetForUpdate(ctx, req.APItemID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFound("ap item not found")
	}

	if req.IdempotencyKey != "" {
		prior, err := m.repo.FindByIdempotencyKey(ctx, req.APItemID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			if prior.ToState == string(req.ToState) {
				return inv, nil
			}
			return nil, apperr.Conflict("idempotency key reused for a different transition")
		}
	}

	from := inv.State
	if !IsValidTransition(from, req.ToState) {
		return nil, apperr.InvalidTransition("transition not allowed").
			WithDetails(string(from) + " -> " + string(req.ToState))
	}

	inv.State = req.ToState
	inv.UpdatedAt = time.Now()

	if err := m.repo.Save(ctx, inv); err != nil {
		return nil, err
	}

	event := domain.AuditEvent{
		EntityType:     "ap_item",
		EntityID:       inv.ID,
		Action:         "transition",
		FromState:      string(from),
		ToState:        string(req.ToState),
		ActorType:      req.ActorType,
		ActorID:        req.ActorID,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
		OccurredAt:     time.Now(),
	}
	if err := m.repo.AppendAudit(ctx, event); err != nil {
		return nil, apperr.Internal("failed to append audit event after item write committed", err)
	}

	return inv, nil
}

// Merge absorbs source's source links into target, transitions source to
// the terminal pseudo-state "merged", and records the merge in target's
// merge history. Source must not already be merged.
func (m *Machine) Merge(ctx context.Context, targetID, sourceID, actorType, actorID, reason string) (*domain.Invoice, error) {
	target, err := m.repo.GetForUpdate(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("merge target not found")
	}
	source, err := m.repo.GetForUpdate(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperr.NotFound("merge source not found")
	}
	if source.State == domain.APMerged {
		return nil, apperr.Conflict("source item is already merged")
	}

	for _, link := range source.SourceLinks {
		if !target.HasSourceLink(link) {
			target.SourceLinks = append(target.SourceLinks, link)
		}
	}
	target.MergeHistory = append(target.MergeHistory, sourceID)
	target.UpdatedAt = time.Now()

	source.State = domain.APMerged
	source.MergedInto = targetID
	source.SourceLinks = nil
	source.UpdatedAt = time.Now()

	if err := m.repo.Save(ctx, target); err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, source); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := m.repo.AppendAudit(ctx, domain.AuditEvent{
		EntityType: "ap_item", EntityID: target.ID, Action: "merge",
		FromState: string(domain.APMerged), ToState: string(target.State),
		ActorType: actorType, ActorID: actorID, Reason: reason, OccurredAt: now,
	}); err != nil {
		return nil, apperr.Internal("failed to append merge audit event", err)
	}
	if err := m.repo.AppendAudit(ctx, domain.AuditEvent{
		EntityType: "ap_item", EntityID: source.ID, Action: "merged_into",
		FromState: "", ToState: string(domain.APMerged),
		ActorType: actorType, ActorID: actorID, Reason: reason, OccurredAt: now,
	}); err != nil {
		return nil, apperr.Internal("failed to append merge audit event", err)
	}

	return target, nil
}

// Split creates a fresh AP item in needs_info for each source link whose
// key is in selectedLinkKeys, inheriting the parent's vendor/amount/
// currency/invoice-number defaults and moving exactly those links off the
// parent.
func (m *Machine) Split(ctx context.Context, parentID string, selectedLinkKeys []string, newID func() string, actorType, actorID string) ([]*domain.Invoice, error) {
	parent, err := m.repo.GetForUpdate(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFound("split parent not found")
	}

	selected := make(map[string]bool, len(selectedLinkKeys))
	for _, k := range selectedLinkKeys {
		selected[k] = true
	}

	var remaining []domain.SourceLink
	var moved []domain.SourceLink
	for _, l := range parent.SourceLinks {
		if selected[l.Key()] {
			moved = append(moved, l)
		} else {
			remaining = append(remaining, l)
		}
	}
	if len(moved) == 0 {
		return nil, apperr.Validation("no matching source links to split")
	}

	parent.SourceLinks = remaining
	parent.UpdatedAt = time.Now()
	if err := m.repo.Save(ctx, parent); err != nil {
		return nil, err
	}

	var children []*domain.Invoice
	for _, link := range moved {
		child := &domain.Invoice{
			ID:             newID(),
			OrganizationID: parent.OrganizationID,
			VendorName:     parent.VendorName,
			InvoiceNumber:  parent.InvoiceNumber,
			Total:          parent.Total,
			State:          domain.APNeedsInfo,
			SourceLinks:    []domain.SourceLink{link},
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := m.repo.Save(ctx, child); err != nil {
			return nil, err
		}
		if err := m.repo.AppendAudit(ctx, domain.AuditEvent{
			EntityType: "ap_item", EntityID: child.ID, Action: "split_from",
			ToState: string(domain.APNeedsInfo), ActorType: actorType, ActorID: actorID,
			OccurredAt: time.Now(),
		}); err != nil {
			return nil, apperr.Internal("failed to append split audit event", err)
		}
		children = append(children, child)
	}

	if err := m.repo.AppendAudit(ctx, domain.AuditEvent{
		EntityType: "ap_item", EntityID: parent.ID, Action: "split",
		ActorType: actorType, ActorID: actorID, OccurredAt: time.Now(),
	}); err != nil {
		return nil, apperr.Internal("failed to append split audit event", err)
	}

	return children, nil
}
