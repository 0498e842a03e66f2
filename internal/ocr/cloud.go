package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

const transcribePrompt = "Transcribe every line of text on this bank statement exactly as printed.\n" +
	"Rules:\n" +
	"- One printed line per output line, in reading order.\n" +
	"- Keep dates, amounts, currency symbols and trailing +/- signs verbatim.\n" +
	"- Keep table rows on a single line with columns separated by single spaces.\n" +
	"- Do NOT summarize, translate or add commentary.\n" +
	"- Return plain text only, no Markdown.\n"

// ContentGenerator is the slice of the genai client the cloud provider uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiGenerator returns the Models service of a genai client.
// An empty apiKey falls back to the GOOGLE_API_KEY / Vertex environment.
func NewGeminiGenerator(ctx context.Context, apiKey string) (ContentGenerator, error) {
	cc := &genai.ClientConfig{HTTPOptions: genai.HTTPOptions{APIVersion: "v1"}}
	if apiKey != "" {
		cc.APIKey = apiKey
		cc.Backend = genai.BackendGeminiAPI
	} else if os.Getenv("GOOGLE_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_GENAI_USE_VERTEXAI") == "" {
		return nil, fmt.Errorf("no cloud ocr credentials: %w", common.ErrProviderUnavailable)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client.Models, nil
}

// CloudProvider transcribes documents with a Gemini model.
// PDFs are split per page and sent concurrently when PageParallelism > 1.
type CloudProvider struct {
	gen         ContentGenerator
	model       string
	parallelism int
	maxPages    int
	logger      *slog.Logger
}

func NewCloudProvider(cfg Config, gen ContentGenerator, logger *slog.Logger) *CloudProvider {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &CloudProvider{
		gen:         gen,
		model:       cfg.CloudModel,
		parallelism: cfg.PageParallelism,
		maxPages:    cfg.MaxPages,
		logger:      logger,
	}
}

func (p *CloudProvider) Name() string { return constants.ProviderCloudOCR }

func (p *CloudProvider) Supports(format string) bool {
	return format == constants.PDF || format == constants.IMAGE
}

func (p *CloudProvider) Extract(ctx context.Context, doc Document) (Result, error) {
	if p.gen == nil {
		return Result{}, fmt.Errorf("cloud ocr not configured: %w", common.ErrProviderUnavailable)
	}

	if doc.Format == constants.PDF && p.parallelism > 1 {
		paths, cleanup, err := splitPDF(doc.Data, p.maxPages)
		if err == nil {
			defer cleanup()
			return p.extractPages(ctx, paths)
		}
		p.logger.Warn("pdf split failed, sending whole document", "error", err)
	}

	page, err := p.transcribe(ctx, doc.Data, doc.MIME)
	if err != nil {
		return Result{}, err
	}
	return p.result([]pageText{page}), nil
}

func (p *CloudProvider) extractPages(ctx context.Context, paths []string) (Result, error) {
	pages, err := ocrPages(ctx, len(paths), p.parallelism, func(ctx context.Context, i int) (pageText, error) {
		data, err := os.ReadFile(paths[i])
		if err != nil {
			return pageText{}, err
		}
		return p.transcribe(ctx, data, "application/pdf")
	})
	if err != nil {
		return Result{}, err
	}
	return p.result(pages), nil
}

func (p *CloudProvider) result(pages []pageText) Result {
	text, conf, warns := joinPages(pages)
	res := Result{
		Text:     Normalize(text),
		Provider: p.Name(),
		Pages:    len(pages),
		Warnings: warns,
	}
	if conf > 0 {
		res.Confidence = &conf
	}
	return res
}

func (p *CloudProvider) transcribe(ctx context.Context, data []byte, mime string) (pageText, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: transcribePrompt},
				{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
			},
		},
	}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}

	resp, err := p.gen.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return pageText{}, classifyCloudErr(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return pageText{}, fmt.Errorf("cloud ocr: empty response")
	}
	out := pageText{Text: resp.Text()}
	out.Confidence = confidenceFromLogprobs(resp.Candidates[0].AvgLogprobs)
	return out, nil
}

// classifyCloudErr marks auth, quota and availability failures as an unavailable provider.
func classifyCloudErr(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	case errors.As(err, &apiErr):
	default:
		return fmt.Errorf("cloud ocr: %w", err)
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return fmt.Errorf("cloud ocr %d %s: %w", apiErr.Code, apiErr.Message, common.ErrProviderUnavailable)
	}
	return fmt.Errorf("cloud ocr: %w", err)
}
