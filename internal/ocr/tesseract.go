package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// TesseractProvider is the offline OCR engine: pdftoppm rasterizes PDFs, tesseract reads pages.
type TesseractProvider struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractProvider(cfg Config, runner Runner, logger *slog.Logger) *TesseractProvider {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &TesseractProvider{cfg: cfg, runner: runner, logger: logger}
}

func (p *TesseractProvider) Name() string { return constants.ProviderLocalOCR }

func (p *TesseractProvider) Supports(format string) bool {
	return format == constants.PDF || format == constants.IMAGE
}

func (p *TesseractProvider) Extract(ctx context.Context, doc Document) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "st-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	var images []string
	switch doc.Format {
	case constants.PDF:
		images, err = p.rasterize(ctx, tmpDir, doc.Data)
		if err != nil {
			return Result{}, err
		}
	case constants.IMAGE:
		img := filepath.Join(tmpDir, "page."+constants.ExtFromMIME(doc.MIME))
		if err := os.WriteFile(img, doc.Data, 0o600); err != nil {
			return Result{}, err
		}
		images = []string{img}
	default:
		return Result{}, fmt.Errorf("unsupported format %q", doc.Format)
	}

	pages, err := ocrPages(ctx, len(images), p.cfg.PageParallelism, func(ctx context.Context, i int) (pageText, error) {
		return p.ocrImage(ctx, images[i])
	})
	if err != nil {
		return Result{}, err
	}
	text, conf, warns := joinPages(pages)
	text = Normalize(text)
	c := blendConfidence(conf, text)
	return Result{
		Text:       text,
		Confidence: &c,
		Provider:   p.Name(),
		Pages:      len(pages),
		Warnings:   warns,
	}, nil
}

// rasterize renders every PDF page to PNG and returns the images in page order.
func (p *TesseractProvider) rasterize(ctx context.Context, dir string, data []byte) ([]string, error) {
	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(p.cfg.DPI), "-png"}
	if p.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	args = append(args, in, prefix)
	if _, _, err := p.runner.Run(ctx, p.cfg.Pdftoppm, args...); err != nil {
		return nil, classifyExecErr(p.cfg.Pdftoppm, err)
	}

	// collect generated pngs (page-1.png, page-2.png ... zero-padded by pdftoppm)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
	return n
}

func (p *TesseractProvider) ocrImage(ctx context.Context, path string) (pageText, error) {
	args := p.baseArgs(path)

	// tesseract <file> stdout -l <lang>
	out, _, err := p.runner.Run(ctx, p.cfg.Tesseract, args...)
	if err != nil {
		return pageText{}, classifyExecErr(p.cfg.Tesseract, err)
	}
	res := pageText{Text: string(out)}

	if p.cfg.EnableTSVConfidence {
		conf, err := p.tsvConfidence(ctx, path)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		} else {
			res.Confidence = conf
		}
	}
	return res, nil
}

func (p *TesseractProvider) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", p.cfg.TesseractLang}
	if p.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(p.cfg.PSM))
	}
	if p.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(p.cfg.OEM))
	}
	if p.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
	}
	return args
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (p *TesseractProvider) tsvConfidence(ctx context.Context, path string) (float32, error) {
	args := append(p.baseArgs(path), "tsv")
	out, _, err := p.runner.Run(ctx, p.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return parseTSVConfidence(string(out)), nil
}

// parseTSVConfidence averages the conf column of tesseract TSV output, skipping -1 rows.
func parseTSVConfidence(tsv string) float32 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}
