package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Submitter accepts an upload and returns the created statement.
type Submitter interface {
	Submit(ctx context.Context, up entity.Upload) (*entity.Statement, error)
}

// Result is the per-file ingest outcome.
type Result struct {
	Path         string
	StatementID  string
	Deduplicated bool
	HashHex      string
	Err          string
}

// Ingestor submits files from the local filesystem and queues their first run.
// Files whose bytes were already ingested by this process are skipped.
type Ingestor struct {
	submitter Submitter
	queue     async.Queue
	defaults  Defaults
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]string // sha256 hex -> statement id
}

func NewIngestor(submitter Submitter, queue async.Queue, defaults Defaults, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		submitter: submitter,
		queue:     queue,
		defaults:  defaults,
		logger:    logger,
		seen:      map[string]string{},
	}
}

// IngestPath submits a single file.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	out := Result{Path: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	mime := constants.MIMEFromExt(ext)
	if mime == "" {
		return out, common.NewAppError(common.CodeValidation, fmt.Sprintf("unsupported or missing extension %q", ext), common.ErrInvalidInput)
	}
	md, err := ParseFilename(abs, i.defaults)
	if err != nil {
		return out, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.StatementID, out.Deduplicated = id, true
		i.logger.Info("ingest.dedup", "path", abs, "statement_id", id)
		return out, nil
	}
	i.mu.Unlock()

	st, err := i.submitter.Submit(ctx, entity.Upload{
		Data:        data,
		MIMEType:    mime,
		Filename:    filepath.Base(abs),
		AccountName: md.Account,
		BankName:    md.Bank,
		Month:       md.Month,
		Year:        md.Year,
		Currency:    md.Currency,
	})
	if err != nil {
		return out, err
	}
	out.StatementID = st.ID.String()

	i.mu.Lock()
	i.seen[out.HashHex] = out.StatementID
	i.mu.Unlock()

	if i.queue != nil {
		if err := i.queue.Enqueue(ctx, async.Job{StatementID: st.ID, RunID: st.RunID, SubmittedAt: time.Now()}); err != nil {
			return out, fmt.Errorf("enqueue %s: %w", st.ID, err)
		}
	}
	i.logger.Info("ingest.ok", "path", abs, "statement_id", st.ID, "bank", md.Bank, "period", fmt.Sprintf("%04d-%02d", md.Year, md.Month))
	return out, nil
}

// IsHidden reports whether a file or directory name starts with '.'.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
