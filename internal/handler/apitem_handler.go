package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/apstate"
	"reconcore/internal/domain"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
	"reconcore/pkg/response"
)

type APItemHandler struct {
	service *service.APTransitionService
}

func NewAPItemHandler(svc *service.APTransitionService) *APItemHandler {
	return &APItemHandler{service: svc}
}

// TransitionRequest is the wire shape of the State Transition contract.
type TransitionRequest struct {
	APItemID       string            `json:"ap_item_id" binding:"required"`
	ToState        string            `json:"to_state" binding:"required"`
	ActorType      string            `json:"actor_type" binding:"required"`
	ActorID        string            `json:"actor_id" binding:"required"`
	Reason         string            `json:"reason"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata"`
}

// Transition godoc
// @Summary Transition an AP item
// @Description Apply a state-machine transition to an AP item, idempotent on idempotency_key
// @Tags ap_items
// @Accept json
// @Produce json
// @Param request body TransitionRequest true "Transition request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/ap-items/transition [post]
func (h *APItemHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid transition request")
		response.ValidationError(c, err.Error())
		return
	}

	inv, err := h.service.Transition(c.Request.Context(), apstate.TransitionRequest{
		APItemID:       req.APItemID,
		ToState:        domain.APState(req.ToState),
		ActorType:      req.ActorType,
		ActorID:        req.ActorID,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		logger.GetLogger().WithError(err).WithField("ap_item_id", req.APItemID).Error("transition failed")
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "transition applied", inv)
}

// MergeRequest merges one AP item into another.
type MergeRequest struct {
	TargetID  string `json:"target_id" binding:"required"`
	SourceID  string `json:"source_id" binding:"required"`
	ActorType string `json:"actor_type" binding:"required"`
	ActorID   string `json:"actor_id" binding:"required"`
	Reason    string `json:"reason"`
}

// Merge godoc
// @Summary Merge two AP items
// @Description Absorb source's source links into target and mark source merged
// @Tags ap_items
// @Accept json
// @Produce json
// @Param request body MergeRequest true "Merge request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/ap-items/merge [post]
func (h *APItemHandler) Merge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	target, err := h.service.Merge(c.Request.Context(), req.TargetID, req.SourceID, req.ActorType, req.ActorID, req.Reason)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "items merged", target)
}

// SplitRequest splits selected source links of an AP item into new items.
type SplitRequest struct {
	ParentID         string   `json:"parent_id" binding:"required"`
	SelectedLinkKeys []string `json:"selected_link_keys" binding:"required,min=1"`
	ActorType        string   `json:"actor_type" binding:"required"`
	ActorID          string   `json:"actor_id" binding:"required"`
}

// Split godoc
// @Summary Split an AP item
// @Description Create a new AP item per selected source link, leaving the rest on the parent
// @Tags ap_items
// @Accept json
// @Produce json
// @Param request body SplitRequest true "Split request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/ap-items/split [post]
func (h *APItemHandler) Split(c *gin.Context) {
	var req SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	children, err := h.service.Split(c.Request.Context(), req.ParentID, req.SelectedLinkKeys, req.ActorType, req.ActorID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "item split", children)
}
