package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statements.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: /tmp/statements.db
extraction:
  min_content_chars: 80
  provider_timeout: 10s
  providers: [local-ocr]
queue:
  workers: 2
`), 0o600))

	t.Setenv("STATEMENTS_CONFIG", path)
	t.Setenv("QUEUE_WORKERS", "6")
	t.Setenv("EXTRACT_FALLBACK", "unavailable")
	t.Setenv("INBOX_DIRS", " /in/a, ,/in/b ")
	t.Setenv("EXTRACT_TESSERACT_TSV", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 80, cfg.Extraction.MinContentChars)
	assert.Equal(t, 10*time.Second, cfg.Extraction.ProviderTimeout)
	assert.Equal(t, []string{"local-ocr"}, cfg.Extraction.Providers)
	assert.Equal(t, 6, cfg.Queue.Workers)
	assert.Equal(t, "unavailable", cfg.Extraction.Fallback)
	assert.Equal(t, []string{"/in/a", "/in/b"}, cfg.Inbox.Dirs)
	assert.False(t, cfg.Extraction.TesseractTSV)
	assert.True(t, DefaultConfig().Extraction.TesseractTSV)
	// untouched defaults survive the overlay
	assert.Equal(t, 300, cfg.Extraction.DPI)
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("STATEMENTS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Equal(t, CodeConfig, CodeOf(err, ""))
}

func TestGetEnvHelpers_IgnoreMalformedValues(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 3, getEnvAsInt("X_INT", 3))
	assert.Equal(t, time.Second, getEnvAsDuration("X_DUR", time.Second))
	assert.True(t, getEnvAsBool("X_BOOL", true))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Database.DSN = "postgres://localhost/statements"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = "gcs" }},
		{name: "negative threshold", mutate: func(c *Config) { c.Extraction.MinContentChars = -1 }},
		{name: "unknown fallback", mutate: func(c *Config) { c.Extraction.Fallback = "never" }},
		{name: "unknown provider", mutate: func(c *Config) { c.Extraction.Providers = []string{"abbyy"} }},
		{name: "no workers", mutate: func(c *Config) { c.Queue.Workers = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, CodeConfig, CodeOf(err, ""))
		})
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{err: WrapError(ErrNotFound, "statement x"), want: codes.NotFound},
		{err: NewAppError(CodeValidation, "bad", ErrValidation), want: codes.InvalidArgument},
		{err: NewAppError(CodeNotRetryable, "busy", ErrNotRetryable), want: codes.FailedPrecondition},
		{err: errors.New("disk on fire"), want: codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(ToStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewAppError(CodeExtractionExhausted, "no provider produced text", ErrExtractionExhausted)
	assert.ErrorIs(t, err, ErrExtractionExhausted)
	assert.Equal(t, "EXTRACTION_EXHAUSTED: no provider produced text: all extraction providers exhausted", err.Error())
	assert.Equal(t, "fallback", CodeOf(errors.New("plain"), "fallback"))
}
