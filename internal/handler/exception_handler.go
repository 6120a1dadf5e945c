package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/exception"
	"reconcore/pkg/logger"
	"reconcore/pkg/response"
)

type ExceptionHandler struct {
	router *exception.Router
}

func NewExceptionHandler(router *exception.Router) *ExceptionHandler {
	return &ExceptionHandler{router: router}
}

// List godoc
// @Summary List the exception queue
// @Description List the organization's exceptions of every status, priority-ordered
// @Tags exceptions
// @Produce json
// @Param organization_id query string true "Organization ID"
// @Success 200 {object} response.Response
// @Router /api/v1/exceptions [get]
func (h *ExceptionHandler) List(c *gin.Context) {
	orgID := c.Query("organization_id")
	exceptions, err := h.router.List(c.Request.Context(), orgID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "exceptions listed", exceptions)
}

// ResolveRequest resolves or ignores a single exception.
type ResolveRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	ResolverID     string `json:"resolver_id" binding:"required"`
	Notes          string `json:"notes"`
	Ignore         bool   `json:"ignore"`
}

// Resolve godoc
// @Summary Resolve or ignore an exception
// @Tags exceptions
// @Accept json
// @Produce json
// @Param id path string true "Exception ID"
// @Param request body ResolveRequest true "Resolution"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/exceptions/{id}/resolve [post]
func (h *ExceptionHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid resolve request")
		response.ValidationError(c, err.Error())
		return
	}
	exceptionID := c.Param("id")
	var err error
	if req.Ignore {
		err = h.router.Ignore(c.Request.Context(), req.OrganizationID, exceptionID, req.ResolverID, req.Notes)
	} else {
		err = h.router.Resolve(c.Request.Context(), req.OrganizationID, exceptionID, req.ResolverID, req.Notes)
	}
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "exception resolved", nil)
}
