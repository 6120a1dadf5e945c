package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBaseline_FindsTotalAndInvoiceNumber(t *testing.T) {
	body := "Please find attached Invoice #INV-2024-55. Total: $1,234.56 due on receipt."

	ext := ExtractBaseline("Invoice from Acme", body, "billing@acme.com")

	assert.Equal(t, "1234.56", ext.TotalAmount)
	assert.Equal(t, "INV-2024-55", ext.InvoiceNumber)
	assert.Equal(t, "Acme", ext.VendorName)
	assert.Greater(t, ext.Confidence, 0.0)
}

func TestExtractBaseline_LowConfidenceWithoutFields(t *testing.T) {
	ext := ExtractBaseline("hello", "just saying hi", "")

	assert.Equal(t, 0.0, ext.Confidence)
}
