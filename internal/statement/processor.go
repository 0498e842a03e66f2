// Package statement owns the statement lifecycle: it accepts uploads and drives each
// run through extraction, parsing, normalization and persistence to a terminal status.
package statement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/normalize"
	"github.com/joseph-ayodele/statements-tracker/internal/ocr"
	"github.com/joseph-ayodele/statements-tracker/internal/parser"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
	"github.com/joseph-ayodele/statements-tracker/internal/storage"
)

// Extractor is the text extraction chain as the processor sees it.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mime string) (ocr.Outcome, error)
	MinContentChars() int
}

type Processor struct {
	statements   repository.StatementRepository
	transactions repository.TransactionRepository
	blobs        storage.BlobStore
	extractor    Extractor
	normalizer   *normalize.Normalizer
	logger       *slog.Logger
}

func NewProcessor(
	statements repository.StatementRepository,
	transactions repository.TransactionRepository,
	blobs storage.BlobStore,
	extractor Extractor,
	normalizer *normalize.Normalizer,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &Processor{
		statements:   statements,
		transactions: transactions,
		blobs:        blobs,
		extractor:    extractor,
		normalizer:   normalizer,
		logger:       logger,
	}
}

// Submit validates an upload, stores its bytes and creates the statement in uploaded.
// The returned statement carries the run id to hand to Run.
func (p *Processor) Submit(ctx context.Context, up entity.Upload) (*entity.Statement, error) {
	if up.Currency == "" {
		up.Currency = "USD"
	}
	mime := constants.NormalizeMIME(up.MIMEType)
	if mime == "" && up.Filename != "" {
		mime = constants.MIMEFromExt(extOf(up.Filename))
	}

	v := common.NewValidator().
		Field("file", up.Data, common.Required).
		Field("mime_type", mime, common.AllowedMIME).
		Field("account_name", up.AccountName, common.Required, common.MaxLength(200)).
		Field("bank_name", up.BankName, common.Required, common.MaxLength(200)).
		Field("month", up.Month, common.IntRange(1, 12)).
		Field("year", up.Year, common.IntRange(1900, 2100)).
		Field("currency", up.Currency, common.CurrencyCode).
		Field("filename", up.Filename, common.MaxLength(255))
	if err := v.Error(); err != nil {
		return nil, err
	}

	id := uuid.New()
	key := fmt.Sprintf("statements/%04d/%02d/%s.%s", up.Year, up.Month, id, constants.ExtFromMIME(mime))
	ref, err := p.blobs.Put(ctx, key, up.Data, mime)
	if err != nil {
		p.logger.Error("statement.submit.store_failed", "statement_id", id, "error", err)
		return nil, common.WrapError(err, "store statement document")
	}

	st := &entity.Statement{
		ID:          id,
		RunID:       uuid.New(),
		ObjectRef:   ref,
		MIMEType:    mime,
		Filename:    up.Filename,
		AccountName: strings.TrimSpace(up.AccountName),
		BankName:    strings.TrimSpace(up.BankName),
		Month:       up.Month,
		Year:        up.Year,
		Currency:    up.Currency,
		Status:      constants.StatusUploaded,
	}
	if err := p.statements.Create(ctx, st); err != nil {
		return nil, err
	}
	p.logger.Info("statement.submit.ok", "statement_id", st.ID, "run_id", st.RunID, "mime", mime, "bytes", len(up.Data))
	return st, nil
}

// Retry puts a needs_review, failed or completed statement back into uploaded and
// returns the new run id. Other states yield ErrNotRetryable.
func (p *Processor) Retry(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	st, err := p.statements.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := transition(st.Status, EventRetry); err != nil {
		return uuid.Nil, common.NewAppError(common.CodeNotRetryable,
			fmt.Sprintf("statement %s is %s", id, st.Status), common.ErrNotRetryable)
	}
	runID, err := p.statements.BeginRetry(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	p.logger.Info("statement.retry.ok", "statement_id", id, "run_id", runID, "from", st.Status)
	return runID, nil
}

// Reprocess retries and runs synchronously, returning the statement as the run left it.
func (p *Processor) Reprocess(ctx context.Context, id uuid.UUID) (*entity.Statement, error) {
	runID, err := p.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	runErr := p.Run(ctx, id, runID)
	st, err := p.statements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return st, runErr
}

// run carries the per-run state through the pipeline steps.
type run struct {
	id, runID uuid.UUID
	state     constants.StatementStatus
	logger    *slog.Logger
}

// Run executes one pipeline run. It always leaves the statement in a terminal status
// unless a later retry took the statement over. Panics are recovered into failed.
func (p *Processor) Run(ctx context.Context, id, runID uuid.UUID) (err error) {
	r := &run{
		id:     id,
		runID:  runID,
		state:  constants.StatusUploaded,
		logger: p.logger.With("statement_id", id, "run_id", runID),
	}
	ctx = common.WithRun(ctx, id.String(), runID.String())
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("statement.run.panic", "panic", rec, "stack", string(debug.Stack()))
			err = p.fail(ctx, r, EventRunFailed, common.CodeRunFailure,
				fmt.Sprintf("internal error: %v", rec), fmt.Errorf("%w: panic: %v", common.ErrInternal, rec))
		}
		r.logger.Info("statement.run.done", "status", r.state, "duration_ms", time.Since(start).Milliseconds(), "error", err)
	}()

	st, err := p.statements.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st.RunID != runID || st.Status != constants.StatusUploaded {
		r.logger.Warn("statement.run.stale", "current_run_id", st.RunID, "status", st.Status)
		return fmt.Errorf("statement %s run %s: %w", id, runID, common.ErrRunSuperseded)
	}

	data, err := p.blobs.Get(ctx, st.ObjectRef)
	if err != nil {
		return p.fail(ctx, r, EventRunFailed, common.CodeRunFailure, "load document: "+err.Error(), err)
	}

	out, err := p.extractor.Extract(ctx, data, st.MIMEType)
	if err != nil {
		ev, code := EventRunFailed, common.CodeOf(err, common.CodeRunFailure)
		if errors.Is(err, common.ErrExtractionExhausted) {
			ev, code = EventExhausted, common.CodeExtractionExhausted
		}
		return p.fail(ctx, r, ev, code, err.Error(), err)
	}
	r.logger.Info("statement.extract.ok",
		"provider", out.Provider,
		"chars", ocr.ContentLength(out.Text),
		"attempts", len(out.Attempts),
		"low_content", out.LowContent,
	)

	if out.LowContent {
		return p.lowContent(ctx, r, out)
	}
	return p.persist(ctx, r, out)
}

func (p *Processor) lowContent(ctx context.Context, r *run, out ocr.Outcome) error {
	next, err := transition(r.state, EventLowContent)
	if err != nil {
		return err
	}
	ext := repository.Extraction{Text: out.Text, Provider: out.Provider, Confidence: out.Confidence}
	if err := p.statements.SaveExtraction(ctx, r.id, r.runID, next, ext); err != nil {
		return p.writeFailed(ctx, r, err)
	}
	r.state = next

	msg := fmt.Sprintf("extracted %d characters, below the minimum of %d; the document may be a scan that needs manual entry",
		ocr.ContentLength(out.Text), p.extractor.MinContentChars())
	if err := p.statements.AppendError(context.WithoutCancel(ctx), r.id, r.runID, common.CodeLowContent, msg); err != nil {
		r.logger.Error("statement.error_log.failed", "error", err)
	}
	r.logger.Warn("statement.needs_review", "reason", msg)
	return nil
}

func (p *Processor) persist(ctx context.Context, r *run, out ocr.Outcome) error {
	summary := parser.Parse(out.Text)
	for _, d := range summary.Drops {
		r.logger.Debug("statement.parse.dropped", "line", d.Line, "reason", d.Reason)
	}

	next, err := transition(r.state, EventExtracted)
	if err != nil {
		return err
	}
	ext := repository.Extraction{
		Text:       out.Text,
		Provider:   out.Provider,
		Confidence: out.Confidence,
		Summary:    summary.ToEntity(),
	}
	if err := p.statements.SaveExtraction(ctx, r.id, r.runID, next, ext); err != nil {
		return p.writeFailed(ctx, r, err)
	}
	r.state = next

	existing, err := p.transactions.Signatures(ctx, r.id)
	if err != nil {
		return p.fail(ctx, r, EventPersistFailed, common.CodePersistenceFailure,
			"load existing transactions: "+err.Error(), fmt.Errorf("%w: %v", common.ErrPersistence, err))
	}
	res := p.normalizer.Normalize(r.id, summary.Transactions, existing, out.Confidence)
	for _, d := range res.Dropped {
		r.logger.Debug("statement.normalize.dropped", "line", d.Line, "reason", d.Reason)
	}

	found := len(summary.Transactions)
	inserted, err := p.transactions.ImportBatch(ctx, r.id, r.runID, found, res.Records)
	if err != nil {
		if errors.Is(err, common.ErrRunSuperseded) {
			r.logger.Warn("statement.persist.superseded")
			return err
		}
		return p.fail(ctx, r, EventPersistFailed, common.CodePersistenceFailure,
			"import transactions: "+err.Error(), fmt.Errorf("%w: %v", common.ErrPersistence, err))
	}
	if r.state, err = transition(r.state, EventPersisted); err != nil {
		return err
	}
	r.logger.Info("statement.persist.ok",
		"found", found,
		"survivors", len(res.Records),
		"duplicates", res.Duplicates,
		"inserted", inserted,
	)
	return nil
}

// writeFailed handles a guarded write that did not land. A superseded run just stops.
func (p *Processor) writeFailed(ctx context.Context, r *run, err error) error {
	if errors.Is(err, common.ErrRunSuperseded) {
		r.logger.Warn("statement.run.superseded")
		return err
	}
	return p.fail(ctx, r, EventRunFailed, common.CodeRunFailure, "save extraction: "+err.Error(), err)
}

// fail moves the run to failed and records why. Writes ignore ctx cancellation so a
// timed-out run still leaves a terminal status behind.
func (p *Processor) fail(ctx context.Context, r *run, ev Event, code, message string, cause error) error {
	next, terr := transition(r.state, ev)
	if terr != nil {
		next = constants.StatusFailed
	}
	wctx := context.WithoutCancel(ctx)

	if err := p.statements.Finish(wctx, r.id, r.runID, next); err != nil {
		if errors.Is(err, common.ErrRunSuperseded) {
			r.logger.Warn("statement.run.superseded", "code", code)
			return err
		}
		r.logger.Error("statement.finish.failed", "status", next, "error", err)
		return errors.Join(common.NewAppError(code, message, cause), err)
	}
	r.state = next
	if err := p.statements.AppendError(wctx, r.id, r.runID, code, message); err != nil {
		r.logger.Error("statement.error_log.failed", "error", err)
	}
	r.logger.Error("statement.run.failed", "code", code, "error", message)
	return common.NewAppError(code, message, cause)
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Pending is an accepted run that has not been executed yet.
type Pending struct {
	StatementID uuid.UUID
	RunID       uuid.UUID
}

// Resume is called once at startup, before any worker runs. It returns the runs still
// in uploaded so they can be queued again and fails the ones that stopped in extracted.
func (p *Processor) Resume(ctx context.Context) ([]Pending, error) {
	uploaded, err := p.statements.List(ctx, repository.ListFilter{Status: constants.StatusUploaded, Limit: 500})
	if err != nil {
		return nil, err
	}
	out := make([]Pending, 0, len(uploaded))
	for _, st := range uploaded {
		out = append(out, Pending{StatementID: st.ID, RunID: st.RunID})
	}

	stuck, err := p.statements.List(ctx, repository.ListFilter{Status: constants.StatusExtracted, Limit: 500})
	if err != nil {
		return out, err
	}
	for _, st := range stuck {
		r := &run{
			id:     st.ID,
			runID:  st.RunID,
			state:  constants.StatusExtracted,
			logger: p.logger.With("statement_id", st.ID, "run_id", st.RunID),
		}
		_ = p.fail(ctx, r, EventRunFailed, common.CodeRunFailure,
			"run interrupted before transactions were persisted", common.ErrInternal)
	}
	if len(out) > 0 || len(stuck) > 0 {
		p.logger.Info("statement.resume", "requeued", len(out), "interrupted", len(stuck))
	}
	return out, nil
}
