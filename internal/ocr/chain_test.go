package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

type fakeProvider struct {
	name    string
	formats []string
	text    string
	err     error
	block   bool // wait for ctx to end
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(format string) bool {
	for _, s := range f.formats {
		if s == format {
			return true
		}
	}
	return false
}

func (f *fakeProvider) Extract(ctx context.Context, _ Document) (Result, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	if f.err != nil {
		return Result{}, f.err
	}
	conf := float32(0.9)
	return Result{Text: f.text, Confidence: &conf, Pages: 1}, nil
}

func textLayer(text string) *fakeProvider {
	return &fakeProvider{name: constants.ProviderPDFText, formats: []string{constants.PDF}, text: text}
}

func cloud(text string, err error) *fakeProvider {
	return &fakeProvider{name: constants.ProviderCloudOCR, formats: []string{constants.PDF, constants.IMAGE}, text: text, err: err}
}

func local(text string, err error) *fakeProvider {
	return &fakeProvider{name: constants.ProviderLocalOCR, formats: []string{constants.PDF, constants.IMAGE}, text: text, err: err}
}

func newTestChain(cfg ChainConfig, tl Provider, ocr ...Provider) *Chain {
	if cfg.MinContentChars == 0 {
		cfg.MinContentChars = 50
	}
	return NewChain(cfg, tl, ocr, nil)
}

func TestChain_TextLayerThreshold(t *testing.T) {
	tests := []struct {
		name         string
		chars        int
		wantProvider string
		wantOCRCalls int
	}{
		{name: "49 chars falls through to ocr", chars: 49, wantProvider: constants.ProviderCloudOCR, wantOCRCalls: 1},
		{name: "50 chars uses text layer", chars: 50, wantProvider: constants.ProviderPDFText, wantOCRCalls: 0},
		{name: "padded 50 chars still counts trimmed", chars: 50, wantProvider: constants.ProviderPDFText, wantOCRCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("a", tt.chars)
			if strings.HasPrefix(tt.name, "padded") {
				text = "   \n" + text + "\n\n  "
			}
			c := cloud(strings.Repeat("b", 80), nil)
			chain := newTestChain(ChainConfig{}, textLayer(text), c)

			out, err := chain.Extract(context.Background(), []byte("%PDF"), "application/pdf")
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, out.Provider)
			assert.False(t, out.LowContent)
			assert.Equal(t, tt.wantOCRCalls, c.calls)
		})
	}
}

func TestChain_CloudFailureFallsBackToLocal(t *testing.T) {
	c := cloud("", errors.New("500 internal"))
	l := local(strings.Repeat("x", 60), nil)
	chain := newTestChain(ChainConfig{}, textLayer(""), c, l)

	out, err := chain.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.ProviderLocalOCR, out.Provider)
	require.Len(t, out.Attempts, 3)
	assert.Error(t, out.Attempts[1].Err)
}

func TestChain_ImageSkipsTextLayer(t *testing.T) {
	tl := textLayer(strings.Repeat("t", 100))
	c := cloud(strings.Repeat("c", 100), nil)
	chain := newTestChain(ChainConfig{}, tl, c)

	out, err := chain.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, constants.ProviderCloudOCR, out.Provider)
	assert.Equal(t, 0, tl.calls)
}

func TestChain_TimeoutIsProviderFailure(t *testing.T) {
	c := &fakeProvider{name: constants.ProviderCloudOCR, formats: []string{constants.IMAGE}, block: true}
	l := local(strings.Repeat("y", 60), nil)
	chain := newTestChain(ChainConfig{ProviderTimeout: 20 * time.Millisecond, Fallback: FallbackUnavailableOnly}, nil, c, l)

	out, err := chain.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, constants.ProviderLocalOCR, out.Provider)
	require.NotEmpty(t, out.Attempts)
	assert.ErrorIs(t, out.Attempts[0].Err, context.DeadlineExceeded)
}

func TestChain_AllProvidersExhausted(t *testing.T) {
	chain := newTestChain(ChainConfig{}, nil, cloud("", errors.New("boom")), local("", errors.New("tesseract crashed")))

	_, err := chain.Extract(context.Background(), []byte("img"), "image/tiff")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtractionExhausted)
	assert.Equal(t, common.CodeExtractionExhausted, common.CodeOf(err, ""))
	assert.Contains(t, err.Error(), "tesseract crashed")
}

func TestChain_FallbackPolicy(t *testing.T) {
	tests := []struct {
		name      string
		policy    FallbackPolicy
		cloudErr  error
		wantLocal bool
	}{
		{name: "any error falls through", policy: FallbackAnyError, cloudErr: errors.New("bad request"), wantLocal: true},
		{name: "unavailable only stops on fatal error", policy: FallbackUnavailableOnly, cloudErr: errors.New("bad request"), wantLocal: false},
		{name: "unavailable only falls through on unavailable", policy: FallbackUnavailableOnly, cloudErr: common.ErrProviderUnavailable, wantLocal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := local(strings.Repeat("z", 60), nil)
			chain := newTestChain(ChainConfig{Fallback: tt.policy}, nil, cloud("", tt.cloudErr), l)

			out, err := chain.Extract(context.Background(), []byte("img"), "image/png")
			if tt.wantLocal {
				require.NoError(t, err)
				assert.Equal(t, constants.ProviderLocalOCR, out.Provider)
				return
			}
			assert.ErrorIs(t, err, common.ErrExtractionExhausted)
			assert.Equal(t, 0, l.calls)
		})
	}
}

func TestChain_LowContent(t *testing.T) {
	t.Run("empty text layer and no ocr text", func(t *testing.T) {
		chain := newTestChain(ChainConfig{}, textLayer(""), cloud("", errors.New("down")))

		out, err := chain.Extract(context.Background(), []byte("%PDF"), "application/pdf")
		require.NoError(t, err)
		assert.True(t, out.LowContent)
		assert.Equal(t, constants.ProviderPDFText, out.Provider)
	})

	t.Run("fatal ocr error keeps short text layer", func(t *testing.T) {
		l := local(strings.Repeat("z", 60), nil)
		chain := newTestChain(ChainConfig{Fallback: FallbackUnavailableOnly}, textLayer("short"), cloud("", errors.New("bad request")), l)

		out, err := chain.Extract(context.Background(), []byte("%PDF"), "application/pdf")
		require.NoError(t, err)
		assert.True(t, out.LowContent)
		assert.Equal(t, "short", out.Text)
		assert.Equal(t, 0, l.calls)
	})

	t.Run("longest short text wins", func(t *testing.T) {
		chain := newTestChain(ChainConfig{}, textLayer("abc"), cloud("abcdefgh", nil), local("abcde", nil))

		out, err := chain.Extract(context.Background(), []byte("%PDF"), "application/pdf")
		require.NoError(t, err)
		assert.True(t, out.LowContent)
		assert.Equal(t, "abcdefgh", out.Text)
		assert.Equal(t, constants.ProviderCloudOCR, out.Provider)
	})
}

func TestChain_RejectsUnknownMIME(t *testing.T) {
	chain := newTestChain(ChainConfig{}, nil, cloud("x", nil))

	_, err := chain.Extract(context.Background(), []byte("x"), "text/plain")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestContentLength(t *testing.T) {
	assert.Equal(t, 0, ContentLength("  \n\t "))
	assert.Equal(t, 3, ContentLength(" é€a "))
}
