package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconcore/internal/domain"
)

func TestCSVTransactionParser_Parse(t *testing.T) {
	tmpDir := t.TempDir()
	csvFile := filepath.Join(tmpDir, "bank_test.csv")

	csvContent := `id,amount,currency,value_date,description,reference
TX001,100.50,USD,2024-01-15,Office supplies,REF-1
TX002,200.75,USD,2024-01-16,Consulting fee,REF-2
TX003,300.00,EUR,2024-01-17,Subscription,REF-3
`
	require.NoError(t, os.WriteFile(csvFile, []byte(csvContent), 0644))

	p := NewCSVTransactionParser("org-1", domain.SourceBank, "USD")
	var txns []domain.Transaction
	err := p.Parse(csvFile, 100, func(batch []domain.Transaction) error {
		txns = append(txns, batch...)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "TX001", txns[0].ID)
	assert.Equal(t, "org-1", txns[0].OrganizationID)
	assert.Equal(t, domain.SourceBank, txns[0].Source)
	assert.Equal(t, "USD", txns[0].Amount.Currency().String())
	assert.Equal(t, "EUR", txns[2].Amount.Currency().String())
	assert.Equal(t, "REF-1", txns[0].Reference)
}

func TestCSVTransactionParser_Parse_BatchesAndSkipsMalformedRows(t *testing.T) {
	tmpDir := t.TempDir()
	csvFile := filepath.Join(tmpDir, "batch_test.csv")

	csvContent := `id,amount,value_date
TX001,100.00,2024-01-15
TX002,not-a-number,2024-01-16
TX003,300.00,2024-01-17
TX004,400.00,2024-01-18
`
	require.NoError(t, os.WriteFile(csvFile, []byte(csvContent), 0644))

	p := NewCSVTransactionParser("org-1", domain.SourceGateway, "USD")
	var batches [][]domain.Transaction
	err := p.Parse(csvFile, 2, func(batch []domain.Transaction) error {
		cp := make([]domain.Transaction, len(batch))
		copy(cp, batch)
		batches = append(batches, cp)
		return nil
	})

	require.NoError(t, err)
	var total int
	for _, b := range batches {
		total += len(b)
	}
	assert.Equal(t, 3, total, "malformed row TX002 should be skipped, not abort the file")
}

func TestCSVTransactionParser_Parse_MissingRequiredColumn(t *testing.T) {
	tmpDir := t.TempDir()
	csvFile := filepath.Join(tmpDir, "bad_header.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("id,amount\nTX001,100.00\n"), 0644))

	p := NewCSVTransactionParser("org-1", domain.SourceBank, "USD")
	err := p.Parse(csvFile, 100, func([]domain.Transaction) error { return nil })
	assert.Error(t, err)
}
