package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// fakeRunner answers external commands from a func and records invocations.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	return f.fn(name, args)
}

func TestTesseractProvider_Image(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "tesseract", name)
		assert.True(t, strings.HasSuffix(args[0], ".png"))
		return []byte("01/05/2024   COFFEE\tSHOP 4.50\r\n"), nil, nil
	}}
	p := NewTesseractProvider(Config{}, r, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("png"), MIME: "image/png", Format: constants.IMAGE})
	require.NoError(t, err)
	assert.Equal(t, "01/05/2024 COFFEE SHOP 4.50", res.Text)
	assert.Equal(t, constants.ProviderLocalOCR, res.Provider)
	assert.Equal(t, 1, res.Pages)
	require.NotNil(t, res.Confidence)
	assert.Greater(t, *res.Confidence, float32(0))
}

func TestTesseractProvider_TSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tCOFFEE\n"
	r := &fakeRunner{fn: func(_ string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil, nil
		}
		return []byte("01/05/2024 COFFEE SHOP 4.50"), nil, nil
	}}
	p := NewTesseractProvider(Config{EnableTSVConfidence: true}, r, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("png"), MIME: "image/png", Format: constants.IMAGE})
	require.NoError(t, err)
	require.Len(t, r.calls, 2)
	assert.True(t, strings.HasSuffix(r.calls[1], " tsv"))
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.Confidence)
	assert.Greater(t, *res.Confidence, float32(0))
}

func TestTesseractProvider_PDFPagesKeepOrder(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			for i := 1; i <= 11; i++ {
				if err := os.WriteFile(fmt.Sprintf("%s-%02d.png", prefix, i), []byte("img"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("text of " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected %s", name)
	}}
	p := NewTesseractProvider(Config{PageParallelism: 4}, r, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("%PDF"), MIME: "application/pdf", Format: constants.PDF})
	require.NoError(t, err)
	assert.Equal(t, 11, res.Pages)

	pages := strings.Split(res.Text, "\n\f\n")
	require.Len(t, pages, 11)
	for i, page := range pages {
		assert.Equal(t, fmt.Sprintf("text of page-%02d.png", i+1), page)
	}
}

func TestTesseractProvider_MissingBinaryIsUnavailable(t *testing.T) {
	r := &fakeRunner{fn: func(name string, _ []string) ([]byte, []byte, error) {
		return nil, nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}}
	p := NewTesseractProvider(Config{}, r, nil)

	_, err := p.Extract(context.Background(), Document{Data: []byte("jpg"), MIME: "image/jpeg", Format: constants.IMAGE})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestParseTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t90\tDEPOSIT\n" +
		"5\t1\t1\t1\t1\t2\t40\t10\t20\t10\t70\t100.00\n"
	assert.InDelta(t, 0.8, parseTSVConfidence(tsv), 0.0001)
	assert.Equal(t, float32(0), parseTSVConfidence("header only\n"))
}

func TestTextLayerProvider_FallsBackToPdftotext(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		assert.Contains(t, args, "-layout")
		return []byte("ACME BANK\nOpening Balance $1,000.00\f"), nil, nil
	}}
	p := NewTextLayerProvider(Config{}, r, nil)

	res, err := p.Extract(context.Background(), Document{Data: []byte("not a pdf"), MIME: "application/pdf", Format: constants.PDF})
	require.NoError(t, err)
	assert.Equal(t, "ACME BANK\nOpening Balance $1,000.00", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.NotEmpty(t, res.Warnings)
}

func TestTextLayerProvider_UnreadableWithoutFallback(t *testing.T) {
	r := &fakeRunner{fn: func(name string, _ []string) ([]byte, []byte, error) {
		return nil, nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}}
	p := NewTextLayerProvider(Config{}, r, nil)

	_, err := p.Extract(context.Background(), Document{Data: []byte("garbage"), MIME: "application/pdf", Format: constants.PDF})
	assert.Error(t, err)
}
