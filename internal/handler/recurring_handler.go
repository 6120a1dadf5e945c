package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/domain"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
	"reconcore/pkg/response"
)

type RecurringHandler struct {
	service *service.RecurringService
}

func NewRecurringHandler(svc *service.RecurringService) *RecurringHandler {
	return &RecurringHandler{service: svc}
}

// RecurringRuleRequest is the wire shape for creating or updating a
// recurring rule.
type RecurringRuleRequest struct {
	OrganizationID     string   `json:"organization_id" binding:"required"`
	Vendor             string   `json:"vendor" binding:"required"`
	VendorAliases      []string `json:"vendor_aliases"`
	ExpectedFrequency  string   `json:"expected_frequency" binding:"required"`
	ExpectedAmount     string   `json:"expected_amount"`
	AmountTolerancePct float64  `json:"amount_tolerance_pct"`
	Action             string   `json:"action" binding:"required"`
	RequireAmountMatch bool     `json:"require_amount_match"`
	DefaultGLCode      string   `json:"default_gl_code"`
}

func (req RecurringRuleRequest) toDomain() domain.RecurringRule {
	return domain.RecurringRule{
		OrganizationID:     req.OrganizationID,
		Vendor:             req.Vendor,
		VendorAliases:      req.VendorAliases,
		ExpectedFrequency:  domain.RecurringFrequency(req.ExpectedFrequency),
		ExpectedAmount:     req.ExpectedAmount,
		AmountTolerance:    req.AmountTolerancePct,
		Action:             domain.RecurringAction(req.Action),
		RequireAmountMatch: req.RequireAmountMatch,
		DefaultGLCode:      req.DefaultGLCode,
	}
}

// Create godoc
// @Summary Create a recurring rule
// @Tags recurring
// @Accept json
// @Produce json
// @Param request body RecurringRuleRequest true "Recurring rule"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/recurring-rules [post]
func (h *RecurringHandler) Create(c *gin.Context) {
	var req RecurringRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid recurring rule request")
		response.ValidationError(c, err.Error())
		return
	}
	rule, err := h.service.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "recurring rule created", rule)
}

// Update godoc
// @Summary Update a recurring rule
// @Tags recurring
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body RecurringRuleRequest true "Recurring rule"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/recurring-rules/{id} [put]
func (h *RecurringHandler) Update(c *gin.Context) {
	var req RecurringRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	rule := req.toDomain()
	rule.ID = c.Param("id")
	updated, err := h.service.Update(c.Request.Context(), rule)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "recurring rule updated", updated)
}

// Delete godoc
// @Summary Disable a recurring rule
// @Tags recurring
// @Produce json
// @Param id path string true "Rule ID"
// @Param organization_id query string true "Organization ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/recurring-rules/{id} [delete]
func (h *RecurringHandler) Delete(c *gin.Context) {
	orgID := c.Query("organization_id")
	if err := h.service.Delete(c.Request.Context(), orgID, c.Param("id")); err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "recurring rule disabled", nil)
}

// List godoc
// @Summary List recurring rules
// @Tags recurring
// @Produce json
// @Param organization_id query string true "Organization ID"
// @Success 200 {object} response.Response
// @Router /api/v1/recurring-rules [get]
func (h *RecurringHandler) List(c *gin.Context) {
	orgID := c.Query("organization_id")
	rules, err := h.service.List(c.Request.Context(), orgID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "recurring rules listed", rules)
}
