package service

import (
	"context"
	"time"

	"reconcore/internal/apperr"
	"reconcore/internal/apstate"
	"reconcore/internal/coa"
	"reconcore/internal/domain"
	"reconcore/internal/exception"
	"reconcore/internal/invoice"
	"reconcore/internal/learning"
	"reconcore/internal/llm"
	"reconcore/pkg/logger"
	"reconcore/pkg/money"
)

// ExtractInvoiceRequest is the input to the Extract Invoice contract.
type ExtractInvoiceRequest struct {
	OrganizationID string
	EmailSubject   string
	EmailBody      string
	EmailSender    string
	Attachments    []llm.Attachment
}

// InvoiceService implements the Extract Invoice external contract: run
// extraction, categorize against the chart of accounts, and create a new
// AP item in the received state.
type InvoiceService struct {
	apRepo          apstate.Repository
	coaProvider     coa.Provider
	learn           *learning.Service
	providers       []llm.Provider
	visionThreshold float64
	idGen           func() string
	bands           domain.PriorityBands
	recurring       *RecurringService
}

func NewInvoiceService(apRepo apstate.Repository, coaProvider coa.Provider, learn *learning.Service, providers []llm.Provider, visionThreshold float64, idGen func() string, bands domain.PriorityBands, recurring *RecurringService) *InvoiceService {
	return &InvoiceService{
		apRepo:          apRepo,
		coaProvider:     coaProvider,
		learn:           learn,
		providers:       providers,
		visionThreshold: visionThreshold,
		idGen:           idGen,
		bands:           bands,
		recurring:       recurring,
	}
}

func (s *InvoiceService) Extract(ctx context.Context, req ExtractInvoiceRequest) (*domain.Invoice, error) {
	ext := invoice.Extract(ctx, req.EmailSubject, req.EmailBody, req.EmailSender, req.Attachments, s.providers, s.visionThreshold)

	currency := ext.Currency
	if currency == "" {
		currency = "USD"
	}
	total := money.Zero(currency)
	if ext.TotalAmount != "" {
		if parsed, err := money.NewFromString(ext.TotalAmount, currency); err == nil {
			total = parsed
		}
	}

	accounts, err := s.coaProvider.ListAccounts(ctx, req.OrganizationID)
	if err != nil {
		return nil, apperr.ExternalFailure("failed to load chart of accounts", err)
	}
	categorization := invoice.Categorize(ctx, s.learn, req.OrganizationID, ext.VendorName, ext.InvoiceNumber, req.EmailBody, accounts, coa.DefaultAccountCode)

	now := time.Now()
	inv := &domain.Invoice{
		ID:              s.idGen(),
		OrganizationID:  req.OrganizationID,
		VendorName:      ext.VendorName,
		InvoiceNumber:   ext.InvoiceNumber,
		Total:           total,
		SuggestedGLCode: categorization.GLCode,
		SuggestionConf:  categorization.Confidence,
		State:           domain.APReceived,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.EmailSender != "" {
		inv.SourceLinks = append(inv.SourceLinks, domain.SourceLink{
			SourceType: domain.LinkEmailMessage,
			SourceRef:  req.EmailSender + ":" + req.EmailSubject,
			DetectedAt: now,
			Subject:    req.EmailSubject,
			Sender:     req.EmailSender,
		})
	}
	if ext.InvoiceDate != "" {
		if d, err := time.Parse("2006-01-02", ext.InvoiceDate); err == nil {
			inv.InvoiceDate = d
		}
	}
	if ext.DueDate != "" {
		if d, err := time.Parse("2006-01-02", ext.DueDate); err == nil {
			inv.DueDate = d
		}
	}
	if !inv.DueDate.IsZero() {
		amount, _ := inv.Total.Amount().Float64()
		priority := exception.AssessAPPriority(s.bands, amount, inv.DueDate, now)
		if inv.ExtraMetadata == nil {
			inv.ExtraMetadata = make(map[string]string)
		}
		inv.ExtraMetadata["priority"] = string(priority)
	}

	// A matching recurring rule informs the auto_approve decision
	// downstream (needs_approval transition) without changing the state
	// machine itself; the result is recorded on the invoice for the
	// approval step to consult.
	if s.recurring != nil && ext.VendorName != "" {
		invoiceDate := inv.InvoiceDate
		if invoiceDate.IsZero() {
			invoiceDate = now
		}
		amount, _ := inv.Total.Amount().Float64()
		recResult, err := s.recurring.Process(ctx, req.OrganizationID, ext.VendorName, amount, invoiceDate)
		if err != nil {
			logger.GetLogger().WithError(err).Warn("invoice extraction: recurring-rule processing skipped")
		} else if recResult != nil {
			if inv.ExtraMetadata == nil {
				inv.ExtraMetadata = make(map[string]string)
			}
			inv.ExtraMetadata["recurring_rule_id"] = recResult.MatchedRuleID
			inv.ExtraMetadata["recurring_action"] = string(recResult.Action)
			if recResult.AutoApproved {
				inv.ExtraMetadata["recurring_auto_approved"] = "true"
			}
		}
	}

	if err := s.apRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.apRepo.AppendAudit(ctx, domain.AuditEvent{
		EntityType: "ap_item", EntityID: inv.ID, Action: "received",
		ToState: string(domain.APReceived), ActorType: "system", ActorID: "invoice_extractor",
		OccurredAt: now,
	}); err != nil {
		return nil, apperr.Internal("failed to append receipt audit event", err)
	}

	return inv, nil
}
