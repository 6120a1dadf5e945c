// Package exception implements the Exception Routing & Queue: priority
// classification and priority-ordered listing of exceptions of every
// status.
package exception

import (
	"context"
	"sort"
	"strings"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/domain"
	"reconcore/internal/notify"
	"reconcore/pkg/logger"
)

// Repository is the persistence contract for exceptions.
type Repository interface {
	Create(ctx context.Context, exc domain.Exception) error
	List(ctx context.Context, organizationID string) ([]domain.Exception, error)
	Resolve(ctx context.Context, organizationID, exceptionID, resolverID, notes string, ignore bool) error
}

// Router classifies and dispatches exceptions to the queue.
type Router struct {
	repo     Repository
	bands    domain.PriorityBands
	notifier notify.Sink
}

// New builds a Router. notifier may be nil, in which case critical
// exceptions are routed without an operator alert.
func New(repo Repository, bands domain.PriorityBands, notifier notify.Sink) *Router {
	return &Router{repo: repo, bands: bands, notifier: notifier}
}

// Classify derives a Priority from an absolute amount using the
// router's configured bands.
func (r *Router) Classify(absAmount float64) domain.Priority {
	return r.bands.Classify(absAmount)
}

// Route persists a new Exception with its priority pre-computed.
func (r *Router) Route(ctx context.Context, idGen func() string, organizationID string, typ domain.ExceptionType, absAmount float64, txnIDs []string) (*domain.Exception, error) {
	priority := r.Classify(absAmount)
	exc := domain.NewException(idGen(), organizationID, typ, priority, txnIDs)
	if err := r.repo.Create(ctx, exc); err != nil {
		return nil, apperr.Internal("failed to persist exception", err)
	}
	if priority == domain.PriorityCritical && r.notifier != nil {
		if err := r.notifier.Notify(ctx, notify.Alert{
			OrganizationID: organizationID,
			Severity:       string(priority),
			Title:          "critical reconciliation exception",
			Body:           string(typ) + " on " + strings.Join(txnIDs, ","),
		}); err != nil {
			logger.GetLogger().WithError(err).Warn("exception: failed to notify operator of critical exception")
		}
	}
	return &exc, nil
}

// List returns the organization's exceptions ordered by priority
// (critical first) then by creation time descending, per spec.md §4.G.
// Ordering uses each record's PriorityRank as stored at creation time so
// the list order is stable even if priority-band configuration changes
// later.
func (r *Router) List(ctx context.Context, organizationID string) ([]domain.Exception, error) {
	exceptions, err := r.repo.List(ctx, organizationID)
	if err != nil {
		return nil, apperr.Internal("failed to list exceptions", err)
	}
	sort.SliceStable(exceptions, func(i, j int) bool {
		if exceptions[i].PriorityRank != exceptions[j].PriorityRank {
			return exceptions[i].PriorityRank > exceptions[j].PriorityRank
		}
		return exceptions[i].CreatedAt.After(exceptions[j].CreatedAt)
	})
	return exceptions, nil
}

// Resolve marks an exception resolved with resolver id, notes, and
// timestamp. The record is never deleted, per the audit-forever
// invariant.
func (r *Router) Resolve(ctx context.Context, organizationID, exceptionID, resolverID, notes string) error {
	if err := r.repo.Resolve(ctx, organizationID, exceptionID, resolverID, notes, false); err != nil {
		return apperr.Internal("failed to resolve exception", err)
	}
	return nil
}

// Ignore marks an exception ignored, terminal like Resolve.
func (r *Router) Ignore(ctx context.Context, organizationID, exceptionID, resolverID, notes string) error {
	if err := r.repo.Resolve(ctx, organizationID, exceptionID, resolverID, notes, true); err != nil {
		return apperr.Internal("failed to ignore exception", err)
	}
	return nil
}

// AssessAPPriority scores an AP item's urgency from due-date proximity,
// supplementing the amount-only bands above with the richer multi-factor
// assessment the reconciliation exception queue does not need but the AP
// item queue benefits from.
func AssessAPPriority(bands domain.PriorityBands, amount float64, dueDate time.Time, now time.Time) domain.Priority {
	daysUntilDue := int(dueDate.Sub(now).Hours() / 24)
	amountPriority := bands.Classify(amount)

	if daysUntilDue <= 0 {
		return domain.PriorityCritical
	}
	if daysUntilDue <= 3 && amountPriority != domain.PriorityLow {
		return domain.PriorityHigh
	}
	return amountPriority
}
