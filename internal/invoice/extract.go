// Package invoice implements the Invoice Extractor / Categorizer:
// deterministic text parsing with an optional vision-model assist, and
// GL-code categorization backed by learned rules and keyword scoring.
package invoice

import (
	"context"
	"regexp"
	"strings"

	"reconcore/internal/llm"
)

// Extraction is the baseline-or-merged structured result of extract().
type Extraction struct {
	VendorName    string
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	TotalAmount   string
	Currency      string
	Confidence    float64
	Degraded      bool
	DegradeReason string
}

var (
	totalPattern   = regexp.MustCompile(`(?i)total[:\s]+\$?([0-9,]+\.[0-9]{2})`)
	invoiceNoPattern = regexp.MustCompile(`(?i:invoice)\s*#?\s*[:\-]?\s*([A-Z0-9\-]+)`)
)

// ExtractBaseline runs the deterministic text parser over an email
// subject/body, producing a baseline invoice structure with a confidence
// in [0,1].
func ExtractBaseline(subject, body, sender string) Extraction {
	ext := Extraction{Currency: "USD"}
	matches := 0

	if m := totalPattern.FindStringSubmatch(body); m != nil {
		ext.TotalAmount = strings.ReplaceAll(m[1], ",", "")
		matches++
	}
	if m := invoiceNoPattern.FindStringSubmatch(subject + " " + body); m != nil {
		ext.InvoiceNumber = m[1]
		matches++
	}
	if sender != "" {
		ext.VendorName = vendorFromSender(sender)
		matches++
	}

	ext.Confidence = float64(matches) / 3.0
	return ext
}

func vendorFromSender(sender string) string {
	at := strings.Index(sender, "@")
	if at < 0 {
		return sender
	}
	domain := sender[at+1:]
	domain = strings.TrimSuffix(domain, ">")
	parts := strings.Split(domain, ".")
	if len(parts) == 0 {
		return domain
	}
	return strings.Title(parts[0])
}

// Extract composes the baseline text parser with an optional external
// vision-capable provider call, per spec.md §4.E. When attachments carry
// PDF/image content, or the baseline's confidence is below
// visionThreshold, providers are tried via llm.Dispatch; a full provider
// failure leaves the baseline standing and records the degradation as
// metadata rather than failing extraction.
func Extract(ctx context.Context, subject, body, sender string, attachments []llm.Attachment, providers []llm.Provider, visionThreshold float64) Extraction {
	baseline := ExtractBaseline(subject, body, sender)

	needsVision := baseline.Confidence < visionThreshold
	if !needsVision {
		for _, a := range attachments {
			if strings.HasPrefix(a.ContentType, "application/pdf") || strings.HasPrefix(a.ContentType, "image/") {
				needsVision = true
				break
			}
		}
	}
	if !needsVision || len(providers) == 0 {
		return baseline
	}

	const prompt = "Extract vendor_name, invoice_number, invoice_date, due_date, total_amount, currency as JSON."
	result, errs := llm.Dispatch(ctx, providers, func(callCtx context.Context, p llm.Provider) (*llm.ExtractionResult, error) {
		if len(attachments) > 0 {
			return p.ExtractMultimodal(callCtx, prompt, attachments)
		}
		return p.ExtractText(callCtx, prompt, body)
	})

	if result == nil {
		baseline.Degraded = true
		baseline.DegradeReason = degradeReason(errs)
		return baseline
	}

	return mergeExtraction(baseline, result)
}

func degradeReason(errs []llm.ProviderError) string {
	if len(errs) == 0 {
		return "no vision provider configured"
	}
	return errs[len(errs)-1].Provider + ": " + errs[len(errs)-1].Err.Error()
}

// mergeExtraction prefers the external result's fields when non-empty,
// otherwise the baseline's; confidence is the minimum of non-null
// contributors.
func mergeExtraction(baseline Extraction, external *llm.ExtractionResult) Extraction {
	merged := baseline
	if external.VendorName != "" {
		merged.VendorName = external.VendorName
	}
	if external.InvoiceNumber != "" {
		merged.InvoiceNumber = external.InvoiceNumber
	}
	if external.InvoiceDate != "" {
		merged.InvoiceDate = external.InvoiceDate
	}
	if external.DueDate != "" {
		merged.DueDate = external.DueDate
	}
	if external.TotalAmount != "" {
		merged.TotalAmount = external.TotalAmount
	}
	if external.Currency != "" {
		merged.Currency = external.Currency
	}
	merged.Confidence = minConfidence(baseline.Confidence, external.Confidence)
	return merged
}

func minConfidence(values ...float64) float64 {
	min := 1.0
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
