package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Queue      QueueConfig      `yaml:"queue"`
	Inbox      InboxConfig      `yaml:"inbox"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	GRPCAddr       string `yaml:"grpc_addr"`
	MaxUploadBytes int    `yaml:"max_upload_bytes"`
}

// StorageConfig selects and configures the object store for uploaded bytes.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // local | gcs
	LocalRoot       string `yaml:"local_root"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// ExtractionConfig holds the provider chain configuration.
type ExtractionConfig struct {
	MinContentChars int           `yaml:"min_content_chars"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	Fallback        string        `yaml:"fallback"` // any | unavailable
	Providers       []string      `yaml:"providers"`
	PageParallelism int           `yaml:"page_parallelism"`

	CloudModel  string `yaml:"cloud_model"`
	CloudAPIKey string `yaml:"cloud_api_key"`

	Pdftotext     string `yaml:"pdftotext"`
	Pdftoppm      string `yaml:"pdftoppm"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	TesseractTSV  bool   `yaml:"tesseract_tsv"` // second tesseract pass for word confidence
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
}

// QueueConfig sizes the asynchronous run supervisor.
type QueueConfig struct {
	Workers    int           `yaml:"workers"`
	Size       int           `yaml:"size"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// InboxConfig configures directory watching for dropped-in statements.
type InboxConfig struct {
	Dirs            []string `yaml:"dirs"`
	InitialScan     bool     `yaml:"initial_scan"`
	DefaultBank     string   `yaml:"default_bank"`
	DefaultAccount  string   `yaml:"default_account"`
	DefaultCurrency string   `yaml:"default_currency"`
}

// DefaultConfig returns the built-in defaults, before any file or environment overrides.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			GRPCAddr:       ":9090",
			MaxUploadBytes: 32 << 20,
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalRoot: "./data/statements",
		},
		Extraction: ExtractionConfig{
			MinContentChars: 50,
			ProviderTimeout: 45 * time.Second,
			Fallback:        "any",
			Providers:       []string{"cloud-ocr", "local-ocr"},
			PageParallelism: 4,
			CloudModel:      "gemini-2.5-flash",
			TesseractLang:   "eng",
			TesseractTSV:    true,
			DPI:             300,
		},
		Queue: QueueConfig{
			Workers:    4,
			Size:       256,
			RunTimeout: 5 * time.Minute,
		},
		Inbox: InboxConfig{
			InitialScan:     true,
			DefaultCurrency: "USD",
		},
	}
}

// LoadConfig loads defaults, then the optional YAML file named by STATEMENTS_CONFIG,
// then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("STATEMENTS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("read config file %q", path), err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config file %q", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	db := &c.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.DSN = getEnv("DB_URL", db.DSN)
	db.MaxConns = getEnvAsInt32("DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvAsInt32("DB_MIN_CONNS", db.MinConns)
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", db.DialTimeout)
	db.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", db.StatementTimeout)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MaxUploadBytes = getEnvAsInt("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	st := &c.Storage
	st.Backend = getEnv("STORAGE_BACKEND", st.Backend)
	st.LocalRoot = getEnv("STORAGE_LOCAL_ROOT", st.LocalRoot)
	st.Bucket = getEnv("GCS_BUCKET", st.Bucket)
	st.Prefix = getEnv("GCS_PREFIX", st.Prefix)
	st.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", st.CredentialsFile)

	ex := &c.Extraction
	ex.MinContentChars = getEnvAsInt("EXTRACT_MIN_CONTENT_CHARS", ex.MinContentChars)
	ex.ProviderTimeout = getEnvAsDuration("EXTRACT_PROVIDER_TIMEOUT", ex.ProviderTimeout)
	ex.Fallback = getEnv("EXTRACT_FALLBACK", ex.Fallback)
	ex.Providers = getEnvAsList("EXTRACT_PROVIDERS", ex.Providers)
	ex.PageParallelism = getEnvAsInt("EXTRACT_PAGE_PARALLELISM", ex.PageParallelism)
	ex.CloudModel = getEnv("GEMINI_MODEL", ex.CloudModel)
	ex.CloudAPIKey = getEnv("GEMINI_API_KEY", ex.CloudAPIKey)
	ex.Pdftotext = getEnv("PDFTOTEXT_BIN", ex.Pdftotext)
	ex.Pdftoppm = getEnv("PDFTOPPM_BIN", ex.Pdftoppm)
	ex.Tesseract = getEnv("TESSERACT_BIN", ex.Tesseract)
	ex.TesseractLang = getEnv("TESSERACT_LANG", ex.TesseractLang)
	ex.TessdataDir = getEnv("TESSDATA_PREFIX", ex.TessdataDir)
	ex.TesseractTSV = getEnvAsBool("EXTRACT_TESSERACT_TSV", ex.TesseractTSV)
	ex.DPI = getEnvAsInt("OCR_DPI", ex.DPI)
	ex.MaxPages = getEnvAsInt("OCR_MAX_PAGES", ex.MaxPages)

	c.Queue.Workers = getEnvAsInt("QUEUE_WORKERS", c.Queue.Workers)
	c.Queue.Size = getEnvAsInt("QUEUE_SIZE", c.Queue.Size)
	c.Queue.RunTimeout = getEnvAsDuration("QUEUE_RUN_TIMEOUT", c.Queue.RunTimeout)

	in := &c.Inbox
	in.Dirs = getEnvAsList("INBOX_DIRS", in.Dirs)
	in.InitialScan = getEnvAsBool("INBOX_INITIAL_SCAN", in.InitialScan)
	in.DefaultBank = getEnv("INBOX_DEFAULT_BANK", in.DefaultBank)
	in.DefaultAccount = getEnv("INBOX_DEFAULT_ACCOUNT", in.DefaultAccount)
	in.DefaultCurrency = getEnv("INBOX_DEFAULT_CURRENCY", in.DefaultCurrency)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("DB_DRIVER %q must be postgres or sqlite", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalRoot == "" {
			return NewAppError(CodeConfig, "STORAGE_LOCAL_ROOT is required for local storage", ErrInvalidInput)
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return NewAppError(CodeConfig, "GCS_BUCKET is required for gcs storage", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("STORAGE_BACKEND %q must be local or gcs", c.Storage.Backend), ErrInvalidInput)
	}
	if c.Extraction.MinContentChars < 0 {
		return NewAppError(CodeConfig, "EXTRACT_MIN_CONTENT_CHARS must not be negative", ErrInvalidInput)
	}
	switch c.Extraction.Fallback {
	case "any", "unavailable":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("EXTRACT_FALLBACK %q must be any or unavailable", c.Extraction.Fallback), ErrInvalidInput)
	}
	for _, p := range c.Extraction.Providers {
		switch p {
		case "cloud-ocr", "local-ocr":
		default:
			return NewAppError(CodeConfig, fmt.Sprintf("unknown OCR provider %q", p), ErrInvalidInput)
		}
	}
	if c.Queue.Workers <= 0 {
		return NewAppError(CodeConfig, "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
