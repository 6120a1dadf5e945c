package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/domain"
	"reconcore/internal/learning"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
	"reconcore/pkg/response"
)

type CorrectionHandler struct {
	learn *learning.Service
}

func NewCorrectionHandler(learn *learning.Service) *CorrectionHandler {
	return &CorrectionHandler{learn: learn}
}

// RecordCorrectionRequest is the wire shape of the Record Correction contract.
type RecordCorrectionRequest struct {
	OrganizationID string                   `json:"organization_id" binding:"required"`
	Type           string                   `json:"type" binding:"required"`
	Original       string                   `json:"original"`
	Corrected      string                   `json:"corrected" binding:"required"`
	Context        domain.CorrectionContext `json:"context"`
	UserID         string                   `json:"user_id" binding:"required"`
}

// Record godoc
// @Summary Record a human correction
// @Description Feed a correction back into the Learning & Correction Service
// @Tags corrections
// @Accept json
// @Produce json
// @Param request body RecordCorrectionRequest true "Correction request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/corrections [post]
func (h *CorrectionHandler) Record(c *gin.Context) {
	var req RecordCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid correction request")
		response.ValidationError(c, err.Error())
		return
	}

	correction := domain.Correction{
		OrganizationID: req.OrganizationID,
		Type:           domain.CorrectionType(req.Type),
		Original:       req.Original,
		Corrected:      req.Corrected,
		Context:        req.Context,
		UserID:         req.UserID,
	}

	result, err := h.learn.RecordCorrection(c.Request.Context(), service.NewID, correction)
	if err != nil {
		logger.GetLogger().WithError(err).Error("failed to record correction")
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "correction recorded", result)
}
