// Package app wires configuration into the running pipeline for both binaries.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/export"
	"github.com/joseph-ayodele/statements-tracker/internal/ocr"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
	"github.com/joseph-ayodele/statements-tracker/internal/statement"
	"github.com/joseph-ayodele/statements-tracker/internal/storage"
)

type App struct {
	Config       *common.Config
	DB           *repository.DB
	Blobs        storage.BlobStore
	Statements   repository.StatementRepository
	Transactions repository.TransactionRepository
	Chain        *ocr.Chain
	Processor    *statement.Processor
	Export       *export.Service
	Logger       *slog.Logger
}

// DatabaseConfig converts the loaded database section for repository.Open.
func DatabaseConfig(cfg common.DatabaseConfig) repository.Config {
	return repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}
}

// OCRConfig converts the extraction section for ocr.New.
func OCRConfig(cfg common.ExtractionConfig) ocr.Config {
	return ocr.Config{
		MinContentChars: cfg.MinContentChars,
		ProviderTimeout: cfg.ProviderTimeout,
		Fallback:        ocr.FallbackPolicy(cfg.Fallback),
		Providers:       cfg.Providers,
		PageParallelism: cfg.PageParallelism,
		CloudModel:      cfg.CloudModel,
		CloudAPIKey:     cfg.CloudAPIKey,
		Pdftotext:       cfg.Pdftotext,
		Pdftoppm:        cfg.Pdftoppm,
		Tesseract:       cfg.Tesseract,
		TesseractLang:   cfg.TesseractLang,
		TessdataDir:     cfg.TessdataDir,
		DPI:             cfg.DPI,
		MaxPages:        cfg.MaxPages,
		PSM:             4,

		EnableTSVConfidence: cfg.TesseractTSV,
	}
}

// Build opens the database and object store and assembles the processor.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, DatabaseConfig(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	blobs, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	chain, err := ocr.New(ctx, OCRConfig(cfg.Extraction), logger)
	if err != nil {
		db.Close()
		closeBlobs(blobs, logger)
		return nil, err
	}

	stmts := repository.NewStatementRepository(db, logger)
	txns := repository.NewTransactionRepository(db, logger)
	return &App{
		Config:       cfg,
		DB:           db,
		Blobs:        blobs,
		Statements:   stmts,
		Transactions: txns,
		Chain:        chain,
		Processor:    statement.NewProcessor(stmts, txns, blobs, chain, nil, logger),
		Export:       export.NewService(stmts, txns, logger),
		Logger:       logger,
	}, nil
}

func (a *App) Close() {
	closeBlobs(a.Blobs, a.Logger)
	a.DB.Close()
}

func closeBlobs(b storage.BlobStore, logger *slog.Logger) {
	if c, ok := b.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("closing object store", "error", err)
		}
	}
}
