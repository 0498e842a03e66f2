package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// TextLayerProvider reads the embedded text of born-digital PDFs.
// It uses the pdf library first and pdftotext when the library cannot decode the file.
type TextLayerProvider struct {
	runner    Runner
	pdftotext string
	maxPages  int
	logger    *slog.Logger
}

func NewTextLayerProvider(cfg Config, runner Runner, logger *slog.Logger) *TextLayerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &TextLayerProvider{runner: runner, pdftotext: cfg.Pdftotext, maxPages: cfg.MaxPages, logger: logger}
}

func (p *TextLayerProvider) Name() string { return constants.ProviderPDFText }

func (p *TextLayerProvider) Supports(format string) bool { return format == constants.PDF }

func (p *TextLayerProvider) Extract(ctx context.Context, doc Document) (Result, error) {
	pages, libErr := readTextLayer(doc.Data, p.maxPages)
	if libErr == nil && strings.TrimSpace(strings.Join(pages, "")) != "" {
		return Result{
			Text:     Normalize(strings.Join(pages, "\n\f\n")),
			Provider: p.Name(),
			Pages:    len(pages),
		}, nil
	}
	if p.runner == nil {
		if libErr != nil {
			return Result{}, libErr
		}
		return Result{Provider: p.Name(), Pages: len(pages)}, nil
	}

	text, n, err := p.pdfToText(ctx, doc.Data)
	if err != nil {
		if libErr != nil {
			return Result{}, fmt.Errorf("pdf text layer: %v; %w", libErr, err)
		}
		// the library read the file, it simply has no text layer
		p.logger.Debug("pdftotext fallback failed", "error", err)
		return Result{Provider: p.Name(), Pages: len(pages)}, nil
	}
	var warns []string
	if libErr != nil {
		warns = append(warns, "pdf library: "+libErr.Error())
	}
	return Result{Text: Normalize(text), Provider: p.Name(), Pages: n, Warnings: warns}, nil
}

// readTextLayer returns the text of each page, rows joined with newlines.
func readTextLayer(data []byte, maxPages int) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	if maxPages > 0 && numPages > maxPages {
		numPages = maxPages
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			pages = append(pages, "")
			continue
		}
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}

func (p *TextLayerProvider) pdfToText(ctx context.Context, data []byte) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "st-pt-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", 0, err
	}
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, _, err := p.runner.Run(ctx, p.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", in, "-")
	if err != nil {
		return "", 0, classifyExecErr(p.pdftotext, err)
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	return text, 1 + strings.Count(strings.TrimRight(text, "\f"), "\f"), nil
}
