package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// FallbackPolicy decides which OCR provider errors move on to the next provider.
type FallbackPolicy string

const (
	// FallbackAnyError tries the next provider after any failure.
	FallbackAnyError FallbackPolicy = "any"
	// FallbackUnavailableOnly falls through only on unavailable or misconfigured providers and
	// timeouts; any other error ends the chain.
	FallbackUnavailableOnly FallbackPolicy = "unavailable"
)

type ChainConfig struct {
	MinContentChars int
	ProviderTimeout time.Duration
	Fallback        FallbackPolicy
}

// Attempt records one provider call made by the chain.
type Attempt struct {
	Provider string
	Chars    int
	Duration time.Duration
	Err      error
}

// Outcome is the chain's answer for one document.
// LowContent is set when some provider succeeded but no text reached the minimum.
type Outcome struct {
	Result
	LowContent bool
	Attempts   []Attempt
}

// Chain tries the text layer (PDF only) and then OCR providers in priority order.
type Chain struct {
	cfg       ChainConfig
	textLayer Provider
	ocr       []Provider
	logger    *slog.Logger
}

func NewChain(cfg ChainConfig, textLayer Provider, ocrProviders []Provider, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackAnyError
	}
	return &Chain{cfg: cfg, textLayer: textLayer, ocr: ocrProviders, logger: logger}
}

// MinContentChars is the configured low-content threshold.
func (c *Chain) MinContentChars() int { return c.cfg.MinContentChars }

// ContentLength is the trimmed rune count compared against the threshold.
func ContentLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

func (c *Chain) usable(text string) bool {
	return ContentLength(text) >= c.cfg.MinContentChars
}

// Extract runs the chain over data declared as mime.
func (c *Chain) Extract(ctx context.Context, data []byte, mime string) (Outcome, error) {
	format := constants.MapMIMEToFormat(mime)
	if format == "" {
		return Outcome{}, common.NewAppError(common.CodeValidation, fmt.Sprintf("unsupported mime type %q", mime), common.ErrInvalidInput)
	}
	doc := Document{Data: data, MIME: constants.NormalizeMIME(mime), Format: format}

	var out Outcome
	var best *Result

	if format == constants.PDF && c.textLayer != nil {
		res, err := c.attempt(ctx, c.textLayer, doc, 0, &out)
		if err == nil {
			if c.usable(res.Text) {
				out.Result = res
				return out, nil
			}
			common.RunLogger(ctx, c.logger).Info("text layer below minimum content, trying ocr",
				"chars", ContentLength(res.Text), "min", c.cfg.MinContentChars)
			best = &res
		}
	}

	for _, p := range c.ocr {
		if !p.Supports(format) {
			continue
		}
		res, err := c.attempt(ctx, p, doc, c.cfg.ProviderTimeout, &out)
		if err != nil {
			if ctx.Err() != nil {
				return out, common.WrapError(ctx.Err(), "extraction cancelled")
			}
			if !c.fallsThrough(err) {
				if best == nil {
					return out, exhausted(out.Attempts, fmt.Sprintf("provider %s failed", p.Name()))
				}
				break
			}
			continue
		}
		if c.usable(res.Text) {
			out.Result = res
			return out, nil
		}
		if best == nil || ContentLength(res.Text) > ContentLength(best.Text) {
			r := res
			best = &r
		}
	}

	if best != nil {
		out.Result = *best
		out.LowContent = true
		return out, nil
	}
	return out, exhausted(out.Attempts, "no provider produced text")
}

func (c *Chain) attempt(ctx context.Context, p Provider, doc Document, timeout time.Duration, out *Outcome) (Result, error) {
	start := time.Now()
	callCtx, cancel := common.WithTimeout(ctx, timeout)
	res, err := p.Extract(callCtx, doc)
	if err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// provider ignored its deadline
		err = callCtx.Err()
	}
	cancel()
	dur := time.Since(start)
	logger := common.RunLogger(ctx, c.logger)
	a := Attempt{Provider: p.Name(), Duration: dur, Err: err}
	if err != nil {
		logger.Warn("extraction provider failed",
			"provider", p.Name(),
			"duration_ms", dur.Milliseconds(),
			"timeout", errors.Is(err, context.DeadlineExceeded),
			"error", err,
		)
		out.Attempts = append(out.Attempts, a)
		return Result{}, err
	}
	if res.Provider == "" {
		res.Provider = p.Name()
	}
	res.Duration = dur
	a.Chars = ContentLength(res.Text)
	out.Attempts = append(out.Attempts, a)
	logger.Info("extraction provider ok",
		"provider", res.Provider,
		"chars", a.Chars,
		"pages", res.Pages,
		"duration_ms", dur.Milliseconds(),
	)
	return res, nil
}

func (c *Chain) fallsThrough(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, common.ErrProviderUnavailable) {
		return true
	}
	return c.cfg.Fallback != FallbackUnavailableOnly
}

func exhausted(attempts []Attempt, message string) error {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if a.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no provider configured for this format")
	}
	return common.NewAppError(common.CodeExtractionExhausted, message,
		fmt.Errorf("%w: %s", common.ErrExtractionExhausted, strings.Join(parts, "; ")))
}
