package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	cfg := common.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.Storage.LocalRoot = t.TempDir()
	cfg.Extraction.Providers = []string{"local-ocr"}
	return cfg
}

func TestBuild(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 50, a.Chain.MinContentChars())
	require.NoError(t, a.DB.HealthCheck(context.Background(), 0))
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extraction.Fallback = "sometimes"
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestOCRConfig(t *testing.T) {
	ex := common.DefaultConfig().Extraction
	got := OCRConfig(ex)
	assert.Equal(t, ex.MinContentChars, got.MinContentChars)
	assert.EqualValues(t, "any", got.Fallback)
	assert.Equal(t, []string{"cloud-ocr", "local-ocr"}, got.Providers)
	assert.True(t, got.EnableTSVConfidence)

	ex.TesseractTSV = false
	assert.False(t, OCRConfig(ex).EnableTSVConfidence)
}
