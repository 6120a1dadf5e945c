package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/llm"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
	"reconcore/pkg/response"
)

type InvoiceHandler struct {
	service *service.InvoiceService
}

func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// AttachmentInput is the wire shape for one inbound email attachment.
type AttachmentInput struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ContentB64  string `json:"content_b64"`
	ContentText string `json:"content_text"`
}

// ExtractInvoiceRequest is the wire shape of the Extract Invoice contract.
type ExtractInvoiceRequest struct {
	OrganizationID string            `json:"organization_id" binding:"required"`
	EmailSubject   string            `json:"email_subject"`
	EmailBody      string            `json:"email_body"`
	EmailSender    string            `json:"email_sender"`
	Attachments    []AttachmentInput `json:"attachments"`
}

// Extract godoc
// @Summary Extract an invoice from an inbound email
// @Description Run LLM-assisted invoice extraction and GL categorization, creating a new AP item
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body ExtractInvoiceRequest true "Extract invoice request"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/invoices/extract [post]
func (h *InvoiceHandler) Extract(c *gin.Context) {
	var req ExtractInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid extract invoice request")
		response.ValidationError(c, err.Error())
		return
	}

	attachments := make([]llm.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, llm.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			ContentB64:  a.ContentB64,
			ContentText: a.ContentText,
		})
	}

	inv, err := h.service.Extract(c.Request.Context(), service.ExtractInvoiceRequest{
		OrganizationID: req.OrganizationID,
		EmailSubject:   req.EmailSubject,
		EmailBody:      req.EmailBody,
		EmailSender:    req.EmailSender,
		Attachments:    attachments,
	})
	if err != nil {
		logger.GetLogger().WithError(err).Error("invoice extraction failed")
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "invoice extracted", inv)
}
