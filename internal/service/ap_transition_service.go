package service

import (
	"context"

	"reconcore/internal/apperr"
	"reconcore/internal/apstate"
	"reconcore/internal/domain"
	"reconcore/internal/erp"
)

// APTransitionService fronts the AP State Machine for the HTTP layer and
// adds the one transition with an external side effect: posting to the
// ERP when an item reaches ready_to_post.
type APTransitionService struct {
	machine *apstate.Machine
	repo    apstate.Repository
	erp     erp.Adapter
	dryRun  bool
}

func NewAPTransitionService(machine *apstate.Machine, repo apstate.Repository, adapter erp.Adapter, dryRun bool) *APTransitionService {
	return &APTransitionService{machine: machine, repo: repo, erp: adapter, dryRun: dryRun}
}

func (s *APTransitionService) Transition(ctx context.Context, req apstate.TransitionRequest) (*domain.Invoice, error) {
	inv, err := s.machine.Transition(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.ToState != domain.APReadyToPost {
		return inv, nil
	}

	payload := map[string]string{
		"ap_item_id":  inv.ID,
		"vendor_name": inv.VendorName,
		"total":       inv.Total.String(),
		"gl_code":     inv.SuggestedGLCode,
	}
	result, postErr := s.erp.ParkInvoice(ctx, inv.OrganizationID, payload, s.dryRun)
	if postErr != nil {
		failed, transErr := s.machine.Transition(ctx, apstate.TransitionRequest{
			APItemID: inv.ID, ToState: domain.APFailedPost,
			ActorType: "system", ActorID: "erp_poster", Reason: postErr.Error(),
		})
		if transErr != nil {
			return nil, apperr.ExternalFailure("erp posting failed and failure transition could not be recorded", transErr)
		}
		return failed, nil
	}

	posted, transErr := s.machine.Transition(ctx, apstate.TransitionRequest{
		APItemID: inv.ID, ToState: domain.APPostedToERP,
		ActorType: "system", ActorID: "erp_poster", Reason: result.ExternalDocRef,
	})
	if transErr != nil {
		return nil, transErr
	}
	return posted, nil
}

func (s *APTransitionService) Merge(ctx context.Context, targetID, sourceID, actorType, actorID, reason string) (*domain.Invoice, error) {
	return s.machine.Merge(ctx, targetID, sourceID, actorType, actorID, reason)
}

func (s *APTransitionService) Split(ctx context.Context, parentID string, selectedLinkKeys []string, actorType, actorID string) ([]*domain.Invoice, error) {
	return s.machine.Split(ctx, parentID, selectedLinkKeys, NewID, actorType, actorID)
}
