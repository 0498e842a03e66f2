package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

type Config struct {
	MinContentChars int            // trimmed runes below this are low content
	ProviderTimeout time.Duration  // per OCR provider call; 0 = no timeout
	Fallback        FallbackPolicy // which OCR errors fall through to the next provider
	Providers       []string       // OCR order, e.g. {"cloud-ocr", "local-ocr"}
	PageParallelism int            // max pages OCR'd concurrently; <=1 is sequential

	CloudModel  string
	CloudAPIKey string

	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	EnableTSVConfidence bool
	PSM                 int // e.g., 4 suits columnar statements
	OEM                 int // 1 = LSTM; leave 0 to use default
}

// Document is the input handed to every provider.
type Document struct {
	Data   []byte
	MIME   string
	Format string // constants.PDF | constants.IMAGE
}

// Result is one provider's successful extraction.
type Result struct {
	Text       string
	Confidence *float32 // nil when the provider reports none
	Provider   string
	Pages      int
	Duration   time.Duration
	Warnings   []string
}

// Provider is one extraction backend in the chain.
type Provider interface {
	Name() string
	Supports(format string) bool
	Extract(ctx context.Context, doc Document) (Result, error)
}

func (c *Config) applyDefaults() {
	if c.MinContentChars < 0 {
		c.MinContentChars = 0
	}
	if c.Fallback == "" {
		c.Fallback = FallbackAnyError
	}
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PageParallelism <= 0 {
		c.PageParallelism = 1
	}
	if c.CloudModel == "" {
		c.CloudModel = "gemini-2.5-flash"
	}
}

// New builds the default chain: text layer for PDFs, then the configured OCR providers in order.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	runner := NewExecRunner(logger)

	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case constants.ProviderCloudOCR:
			gen, err := NewGeminiGenerator(ctx, cfg.CloudAPIKey)
			if err != nil {
				// kept in the chain so every run records it as unavailable
				logger.Warn("cloud ocr not configured", "error", err)
			}
			providers = append(providers, NewCloudProvider(cfg, gen, logger))
		case constants.ProviderLocalOCR:
			providers = append(providers, NewTesseractProvider(cfg, runner, logger))
		default:
			return nil, fmt.Errorf("unknown ocr provider %q", name)
		}
	}

	chainCfg := ChainConfig{
		MinContentChars: cfg.MinContentChars,
		ProviderTimeout: cfg.ProviderTimeout,
		Fallback:        cfg.Fallback,
	}
	return NewChain(chainCfg, NewTextLayerProvider(cfg, runner, logger), providers, logger), nil
}
