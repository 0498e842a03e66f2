package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// pageBreak separates pages in extracted text.
const pageBreak = "\n\f\n"

// pageText is one page's OCR output.
type pageText struct {
	Text       string
	Confidence float32
	Warnings   []string
}

// ocrPages runs fn for every page with at most limit in flight and returns results in page order.
func ocrPages(ctx context.Context, n, limit int, fn func(ctx context.Context, page int) (pageText, error)) ([]pageText, error) {
	out := make([]pageText, n)
	g, gctx := errgroup.WithContext(ctx)
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		page := i
		g.Go(func() error {
			res, err := fn(gctx, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", page+1, err)
			}
			out[page] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// joinPages concatenates page texts in order and averages reported confidences.
func joinPages(pages []pageText) (string, float32, []string) {
	var b strings.Builder
	var confs []float32
	var warns []string
	for i, p := range pages {
		if i > 0 {
			b.WriteString(pageBreak)
		}
		b.WriteString(p.Text)
		confs = append(confs, p.Confidence)
		warns = append(warns, p.Warnings...)
	}
	return b.String(), meanConfidence(confs), warns
}

// splitPDF writes one single-page PDF per page into a temp dir and returns their
// paths in page order plus a cleanup func.
func splitPDF(data []byte, maxPages int) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "st-split-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	in := filepath.Join(tmpDir, "statement.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		cleanup()
		return nil, nil, err
	}
	pageCount, err := api.PageCountFile(in)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("page count: %w", err)
	}
	if err := api.SplitFile(in, tmpDir, 1, nil); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("split pdf: %w", err)
	}
	if maxPages > 0 && pageCount > maxPages {
		pageCount = maxPages
	}

	paths := make([]string, 0, pageCount)
	base := strings.TrimSuffix(in, filepath.Ext(in))
	for i := 1; i <= pageCount; i++ {
		p := fmt.Sprintf("%s_%d.pdf", base, i)
		if _, err := os.Stat(p); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("split page %d missing: %w", i, err)
		}
		paths = append(paths, p)
	}
	return paths, cleanup, nil
}
