// Package llm defines the language-model collaborator used by invoice
// extraction, and a typed-result provider-dispatch loop in place of the
// exception-based "try next provider" control flow called out in
// spec.md §9's redesign notes.
package llm

import (
	"context"
	"time"
)

// Attachment is one extraction input attachment.
type Attachment struct {
	Filename    string
	ContentType string
	ContentB64  string
	ContentText string
}

// ExtractionResult is the structured JSON a provider returns.
type ExtractionResult struct {
	VendorName    string
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	TotalAmount   string
	Currency      string
	LineItems     []map[string]string
	Confidence    float64
}

// Provider is an external language-model service with text-only and
// multimodal (PDF/image + text) JSON generation capabilities.
type Provider interface {
	Name() string
	ExtractText(ctx context.Context, prompt, text string) (*ExtractionResult, error)
	ExtractMultimodal(ctx context.Context, prompt string, attachments []Attachment) (*ExtractionResult, error)
}

// ProviderError pairs a provider name with the error it returned, so a
// dispatch failure is an ordered list of typed errors rather than a
// chain of caught exceptions.
type ProviderError struct {
	Provider string
	Err      error
}

// DefaultTimeout is the 60s LLM collaborator timeout from spec.md §5.
const DefaultTimeout = 60 * time.Second

// Dispatch tries each provider in order until one succeeds, returning its
// result, or every provider's error if none succeeds. The caller decides
// what to do with a full failure (invoice.Extract keeps the baseline
// extraction); Dispatch itself never falls back.
func Dispatch(ctx context.Context, providers []Provider, call func(context.Context, Provider) (*ExtractionResult, error)) (*ExtractionResult, []ProviderError) {
	var errs []ProviderError
	for _, p := range providers {
		callCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		result, err := call(callCtx, p)
		cancel()
		if err == nil {
			return result, errs
		}
		errs = append(errs, ProviderError{Provider: p.Name(), Err: err})
	}
	return nil, errs
}
