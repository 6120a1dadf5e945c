// Command import bulk-loads a CSV transaction file into the engine's
// transaction store, for organizations that submit bank or gateway
// statements as files rather than through the Reconcile HTTP contract.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	_ "github.com/lib/pq"

	"reconcore/internal/config"
	"reconcore/internal/domain"
	"reconcore/internal/parser"
	"reconcore/internal/repository"
	"reconcore/pkg/logger"
)

func main() {
	var (
		filePath       = flag.String("file", "", "path to the CSV file to import")
		organizationID = flag.String("organization", "", "organization id to import into")
		source         = flag.String("source", "bank", "transaction source: bank, gateway, or internal")
		currency       = flag.String("currency", "USD", "default currency for rows without a currency column")
		batchSize      = flag.Int("batch-size", 500, "rows per insert batch")
	)
	flag.Parse()

	if *filePath == "" || *organizationID == "" {
		log.Fatal("both -file and -organization are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger.Init(cfg.App.LogLevel)

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.GetLogger().WithError(err).Fatal("failed to ping database")
	}

	txRepo := repository.NewTransactionRepository(db)
	p := parser.NewCSVTransactionParser(*organizationID, domain.TransactionSource(*source), *currency)

	ctx := context.Background()
	var imported int
	err = p.Parse(*filePath, *batchSize, func(batch []domain.Transaction) error {
		if err := txRepo.BulkCreate(ctx, batch); err != nil {
			return err
		}
		imported += len(batch)
		logger.GetLogger().WithField("imported", imported).Info("import: batch persisted")
		return nil
	})
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("import failed")
	}

	logger.GetLogger().WithField("total", imported).Info("import completed")
}
