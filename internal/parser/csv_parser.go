// Package parser implements streaming CSV ingestion of transactions, used
// by batch import tooling for organizations that submit bank/gateway
// statements as files rather than through the Reconcile HTTP contract.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"reconcore/internal/domain"
	"reconcore/pkg/logger"
	"reconcore/pkg/money"
)

// TransactionParser streams transactions out of a file in batches.
type TransactionParser interface {
	Parse(filePath string, batchSize int, callback func([]domain.Transaction) error) error
}

// CSVTransactionParser reads a CSV of transactions for a single
// organization and source, converting each row to a domain.Transaction.
type CSVTransactionParser struct {
	OrganizationID string
	Source         domain.TransactionSource
	DefaultCurrency string
}

func NewCSVTransactionParser(organizationID string, source domain.TransactionSource, defaultCurrency string) *CSVTransactionParser {
	return &CSVTransactionParser{OrganizationID: organizationID, Source: source, DefaultCurrency: defaultCurrency}
}

// requiredColumns: id, amount, value_date. currency, description,
// reference, and counterparty are optional.
var requiredColumns = []string{"id", "amount", "value_date"}

// Parse reads filePath in streaming mode, invoking callback once per
// batch of up to batchSize transactions. A malformed row is logged and
// skipped rather than aborting the whole file.
func (p *CSVTransactionParser) Parse(filePath string, batchSize int, callback func([]domain.Transaction) error) error {
	file, err := os.Open(filePath)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("file", filePath).Error("parser: failed to open file")
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	columnMap := mapColumns(header)
	if !hasColumns(columnMap, requiredColumns) {
		return fmt.Errorf("invalid CSV format: missing required columns (id, amount, value_date)")
	}

	batch := make([]domain.Transaction, 0, batchSize)
	lineNumber := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("parser: failed to read row, skipping")
			continue
		}

		txn, err := p.parseRecord(record, columnMap, lineNumber)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("parser: failed to parse row, skipping")
			continue
		}

		batch = append(batch, *txn)
		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return err
			}
			batch = make([]domain.Transaction, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		return callback(batch)
	}
	return nil
}

func (p *CSVTransactionParser) parseRecord(record []string, columnMap map[string]int, lineNumber int) (*domain.Transaction, error) {
	if len(record) < len(columnMap) {
		return nil, fmt.Errorf("incomplete record at line %d", lineNumber)
	}

	id := strings.TrimSpace(record[columnMap["id"]])
	if id == "" {
		return nil, fmt.Errorf("empty id at line %d", lineNumber)
	}

	currency := p.DefaultCurrency
	if idx, ok := columnMap["currency"]; ok {
		if v := strings.TrimSpace(record[idx]); v != "" {
			currency = v
		}
	}
	amountStr := strings.TrimSpace(record[columnMap["amount"]])
	amount, err := money.NewFromString(amountStr, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q at line %d: %w", amountStr, lineNumber, err)
	}

	dateStr := strings.TrimSpace(record[columnMap["value_date"]])
	valueDate, err := parseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid value_date %q at line %d: %w", dateStr, lineNumber, err)
	}

	txn := &domain.Transaction{
		ID:             id,
		OrganizationID: p.OrganizationID,
		Amount:         amount,
		ValueDate:      valueDate,
		Source:         p.Source,
		SourceID:       id,
		Status:         domain.TxnPending,
	}
	if idx, ok := columnMap["description"]; ok {
		txn.Description = strings.TrimSpace(record[idx])
	}
	if idx, ok := columnMap["reference"]; ok {
		txn.Reference = strings.TrimSpace(record[idx])
	}
	if idx, ok := columnMap["counterparty"]; ok {
		txn.Counterparty = strings.TrimSpace(record[idx])
	}
	return txn, nil
}

func mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int, len(header))
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return columnMap
}

func hasColumns(columnMap map[string]int, required []string) bool {
	for _, col := range required {
		if _, ok := columnMap[col]; !ok {
			return false
		}
	}
	return true
}

func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"02/01/2006",
		"01/02/2006",
		"2006/01/02",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
