package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconcore/internal/domain"
	"reconcore/internal/repository"
	"reconcore/internal/service"
	"reconcore/pkg/logger"
	"reconcore/pkg/money"
	"reconcore/pkg/response"
)

type ReconciliationHandler struct {
	service service.ReconciliationService
	txns    repository.TransactionRepository
	cfg     domain.ReconciliationConfig
}

func NewReconciliationHandler(svc service.ReconciliationService, txns repository.TransactionRepository, cfg domain.ReconciliationConfig) *ReconciliationHandler {
	return &ReconciliationHandler{service: svc, txns: txns, cfg: cfg}
}

// TransactionInput is the wire shape for one inbound transaction on the
// Reconcile request.
type TransactionInput struct {
	ID           string            `json:"id" binding:"required"`
	Amount       string            `json:"amount" binding:"required"`
	Currency     string            `json:"currency" binding:"required"`
	ValueDate    string            `json:"value_date" binding:"required"`
	Description  string            `json:"description"`
	Reference    string            `json:"reference"`
	Counterparty string            `json:"counterparty"`
	ExtraMetadata map[string]string `json:"extra_metadata"`
}

// ReconcileRequest is the input to the Reconcile external contract.
type ReconcileRequest struct {
	OrganizationID string              `json:"organization_id" binding:"required"`
	GatewayTxns    []TransactionInput  `json:"gateway_txns"`
	BankTxns       []TransactionInput  `json:"bank_txns"`
	InternalTxns   []TransactionInput  `json:"internal_txns"`
	Config         *ReconcileConfigInput `json:"config"`
}

// ReconcileConfigInput overrides the organization's default reconciliation
// thresholds for a single run.
type ReconcileConfigInput struct {
	AmountTolerancePct      *float64 `json:"amount_tolerance_pct"`
	DateWindowDays          *int     `json:"date_window_days"`
	AutoMatchThreshold      *int     `json:"auto_match_threshold"`
	AutoJEThreshold         *int     `json:"auto_je_threshold"`
	ReviewRequiredThreshold *int     `json:"review_required_threshold"`
}

func (h *ReconciliationHandler) effectiveConfig(override *ReconcileConfigInput) domain.ReconciliationConfig {
	cfg := h.cfg
	if override == nil {
		return cfg
	}
	if override.AmountTolerancePct != nil {
		cfg.AmountTolerancePct = *override.AmountTolerancePct
	}
	if override.DateWindowDays != nil {
		cfg.DateWindowDays = *override.DateWindowDays
	}
	if override.AutoMatchThreshold != nil {
		cfg.AutoMatchThreshold = *override.AutoMatchThreshold
	}
	if override.AutoJEThreshold != nil {
		cfg.AutoJEThreshold = *override.AutoJEThreshold
	}
	if override.ReviewRequiredThreshold != nil {
		cfg.ReviewRequiredThreshold = *override.ReviewRequiredThreshold
	}
	return cfg
}

func toTransactions(organizationID string, inputs []TransactionInput, source domain.TransactionSource) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(inputs))
	for _, in := range inputs {
		amt, err := money.NewFromString(in.Amount, in.Currency)
		if err != nil {
			return nil, err
		}
		valueDate, err := parseFlexibleDate(in.ValueDate)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Transaction{
			ID:             in.ID,
			OrganizationID: organizationID,
			Amount:         amt,
			ValueDate:      valueDate,
			Description:    in.Description,
			Reference:      in.Reference,
			Counterparty:   in.Counterparty,
			Source:         source,
			SourceID:       in.ID,
			Status:         domain.TxnPending,
			ExtraMetadata:  in.ExtraMetadata,
		})
	}
	return out, nil
}

// Reconcile godoc
// @Summary Run a reconciliation batch
// @Description Ingest gateway/bank/internal transactions and run the matching pipeline
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param request body ReconcileRequest true "Reconciliation request"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/reconcile [post]
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.GetLogger().WithError(err).Error("invalid reconcile request")
		response.ValidationError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	gateway, err := toTransactions(req.OrganizationID, req.GatewayTxns, domain.SourceGateway)
	if err != nil {
		response.BadRequest(c, "invalid gateway transaction", err.Error())
		return
	}
	bank, err := toTransactions(req.OrganizationID, req.BankTxns, domain.SourceBank)
	if err != nil {
		response.BadRequest(c, "invalid bank transaction", err.Error())
		return
	}
	internal, err := toTransactions(req.OrganizationID, req.InternalTxns, domain.SourceInternal)
	if err != nil {
		response.BadRequest(c, "invalid internal transaction", err.Error())
		return
	}

	all := append(append(gateway, bank...), internal...)
	if len(all) > 0 {
		if err := h.txns.BulkCreate(ctx, all); err != nil {
			response.AppError(c, err)
			return
		}
	}

	var internalKind domain.TransactionSource
	if len(req.InternalTxns) > 0 {
		internalKind = domain.SourceInternal
	}

	cfg := h.effectiveConfig(req.Config)
	result, err := h.service.Reconcile(ctx, req.OrganizationID, cfg, domain.SourceGateway, domain.SourceBank, internalKind)
	if err != nil {
		logger.GetLogger().WithError(err).Error("reconciliation run failed")
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "reconciliation completed", result)
}
