package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/coa"
	"reconcore/internal/domain"
	"reconcore/internal/learning"
	"reconcore/internal/llm"
)

// stubVisionProvider always returns a fixed extraction, used to push
// Extract past its needs-vision gate deterministically.
type stubVisionProvider struct {
	result *llm.ExtractionResult
}

func (s *stubVisionProvider) Name() string { return "stub" }

func (s *stubVisionProvider) ExtractText(context.Context, string, string) (*llm.ExtractionResult, error) {
	return s.result, nil
}

func (s *stubVisionProvider) ExtractMultimodal(context.Context, string, []llm.Attachment) (*llm.ExtractionResult, error) {
	return s.result, nil
}

// memoryLearningRepo is a no-op learning.Repository: Extract exercises
// the categorizer's keyword fallback path, never the learned-rule path,
// when no corrections have been recorded.
type memoryLearningRepo struct{}

func (memoryLearningRepo) AppendCorrection(context.Context, domain.Correction) error { return nil }
func (memoryLearningRepo) CountCorrections(context.Context, string, domain.CorrectionType, string) (int, error) {
	return 0, nil
}
func (memoryLearningRepo) GetRule(context.Context, string, domain.CorrectionType, string) (*domain.LearnedRule, error) {
	return nil, nil
}
func (memoryLearningRepo) UpsertRule(context.Context, domain.LearnedRule) error { return nil }

func newTestInvoiceService(t *testing.T, recurring *RecurringService, provider llm.Provider) *InvoiceService {
	t.Helper()
	apRepo := newMemoryAPRepo()
	learn := learning.New(memoryLearningRepo{})
	bands := domain.DefaultPriorityBands()
	var providers []llm.Provider
	if provider != nil {
		providers = []llm.Provider{provider}
	}
	return NewInvoiceService(apRepo, coa.NewInMemory(nil), learn, providers, 1.1, idGen("ap1"), bands, recurring)
}

func TestInvoiceService_Extract_SetsPriorityFromDueDate(t *testing.T) {
	dueDate := time.Now().Add(10 * 24 * time.Hour).Format("2006-01-02")
	provider := &stubVisionProvider{result: &llm.ExtractionResult{
		VendorName: "Acme Corp", TotalAmount: "15000.00", Currency: "USD", DueDate: dueDate, Confidence: 1,
	}}
	svc := newTestInvoiceService(t, nil, provider)

	inv, err := svc.Extract(context.Background(), ExtractInvoiceRequest{OrganizationID: "org1", EmailBody: "Total: $15000.00"})

	require.NoError(t, err)
	assert.Equal(t, string(domain.PriorityCritical), inv.ExtraMetadata["priority"])
}

func TestInvoiceService_Extract_RecordsRecurringMatch(t *testing.T) {
	repo := newMemoryRecurringRepo(domain.RecurringRule{
		ID: "rule1", OrganizationID: "org1", Vendor: "Acme", Enabled: true,
		Action: domain.ActionAutoApprove, TotalAmount: "0",
	})
	recurringSvc := NewRecurringService(repo, idGen("rule-unused"))
	svc := newTestInvoiceService(t, recurringSvc, nil)

	inv, err := svc.Extract(context.Background(), ExtractInvoiceRequest{
		OrganizationID: "org1", EmailSender: "billing@acme.com", EmailBody: "Total: $100.00",
	})

	require.NoError(t, err)
	assert.Equal(t, "rule1", inv.ExtraMetadata["recurring_rule_id"])
	assert.Equal(t, "true", inv.ExtraMetadata["recurring_auto_approved"])
}

func TestInvoiceService_Extract_NoRecurringRuleLeavesMetadataUnset(t *testing.T) {
	repo := newMemoryRecurringRepo()
	recurringSvc := NewRecurringService(repo, idGen("rule-unused"))
	svc := newTestInvoiceService(t, recurringSvc, nil)

	inv, err := svc.Extract(context.Background(), ExtractInvoiceRequest{
		OrganizationID: "org1", EmailSender: "billing@acme.com", EmailBody: "Total: $100.00",
	})

	require.NoError(t, err)
	_, ok := inv.ExtraMetadata["recurring_rule_id"]
	assert.False(t, ok)
}
