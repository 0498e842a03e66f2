package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

const (
	statementsTable = "statements"
	errorsTable     = "processing_errors"
)

var statementColumns = []string{
	"id", "run_id", "object_ref", "mime_type", "filename",
	"account_name", "bank_name", "month", "year", "currency",
	"status", "extracted_text", "parsed_summary", "extraction_provider", "extraction_confidence",
	"transactions_found", "transactions_imported", "created_at", "updated_at",
}

// Extraction is what one run learned from the document text.
type Extraction struct {
	Text       string
	Provider   string
	Confidence *float32
	Summary    *entity.ParsedSummary
}

// ListFilter narrows List. Zero values mean no filter and the default limit.
type ListFilter struct {
	Status constants.StatementStatus
	Limit  int
}

type StatementRepository interface {
	Create(ctx context.Context, st *entity.Statement) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Statement, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Statement, error)
	// BeginRetry moves a retryable statement back to uploaded under a fresh run id.
	BeginRetry(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	// SaveExtraction records extraction output and moves the run out of uploaded.
	SaveExtraction(ctx context.Context, id, runID uuid.UUID, status constants.StatementStatus, ext Extraction) error
	// Finish writes a terminal status for a run that has not already ended.
	Finish(ctx context.Context, id, runID uuid.UUID, status constants.StatementStatus) error
	AppendError(ctx context.Context, id, runID uuid.UUID, code, message string) error
	ListErrors(ctx context.Context, id uuid.UUID) ([]entity.ProcessingError, error)
}

type statementRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewStatementRepository(db *DB, logger *slog.Logger) StatementRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &statementRepository{db: db, logger: logger}
}

func (r *statementRepository) Create(ctx context.Context, st *entity.Statement) error {
	now := time.Now().UTC()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.RunID == uuid.Nil {
		st.RunID = uuid.New()
	}
	if st.Status == "" {
		st.Status = constants.StatusUploaded
	}
	st.CreatedAt, st.UpdatedAt = now, now

	query, args := r.db.builder().Insert(statementsTable).
		Columns("id", "run_id", "object_ref", "mime_type", "filename",
			"account_name", "bank_name", "month", "year", "currency",
			"status", "created_at", "updated_at").
		Values(st.ID, st.RunID, st.ObjectRef, st.MIMEType, st.Filename,
			st.AccountName, st.BankName, st.Month, st.Year, st.Currency,
			string(st.Status), now, now).
		Query()
	if _, err := r.db.sql.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("statement create failed", "statement_id", st.ID, "error", err)
		return fmt.Errorf("%w: create statement: %v", common.ErrDatabase, err)
	}
	r.logger.Info("statement created", "statement_id", st.ID, "run_id", st.RunID, "object_ref", st.ObjectRef)
	return nil
}

func (r *statementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Statement, error) {
	query, args := r.db.builder().Select(statementColumns...).
		From(entsql.Table(statementsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	st, err := scanStatement(r.db.sql.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("statement %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get statement: %v", common.ErrDatabase, err)
	}
	if st.ProcessingErrors, err = r.ListErrors(ctx, id); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *statementRepository) List(ctx context.Context, filter ListFilter) ([]*entity.Statement, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sel := r.db.builder().Select(statementColumns...).From(entsql.Table(statementsTable))
	if filter.Status != "" {
		sel = sel.Where(entsql.EQ("status", string(filter.Status)))
	}
	query, args := sel.OrderExpr(entsql.Expr("created_at DESC")).Limit(limit).Query()

	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list statements: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan statement: %v", common.ErrDatabase, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *statementRepository) BeginRetry(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	runID := uuid.New()
	retryable := make([]any, 0, 3)
	for _, s := range constants.RetryableStatuses() {
		retryable = append(retryable, string(s))
	}
	query, args := r.db.builder().Update(statementsTable).
		Set("status", string(constants.StatusUploaded)).
		Set("run_id", runID).
		Set("extracted_text", nil).
		Set("parsed_summary", nil).
		Set("extraction_provider", nil).
		Set("extraction_confidence", nil).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.In("status", retryable...))).
		Query()

	n, err := r.exec(ctx, query, args)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: begin retry: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		st, err := r.GetByID(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, common.NewAppError(common.CodeNotRetryable,
			fmt.Sprintf("statement %s is %s", id, st.Status), common.ErrNotRetryable)
	}
	r.logger.Info("statement retry started", "statement_id", id, "run_id", runID)
	return runID, nil
}

func (r *statementRepository) SaveExtraction(ctx context.Context, id, runID uuid.UUID, status constants.StatementStatus, ext Extraction) error {
	var summary any
	if ext.Summary != nil {
		b, err := json.Marshal(ext.Summary)
		if err != nil {
			return fmt.Errorf("marshal parsed summary: %w", err)
		}
		summary = string(b)
	}
	query, args := r.db.builder().Update(statementsTable).
		Set("status", string(status)).
		Set("extracted_text", ext.Text).
		Set("parsed_summary", summary).
		Set("extraction_provider", nullString(ext.Provider)).
		Set("extraction_confidence", nullFloat32(ext.Confidence)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("run_id", runID),
			entsql.EQ("status", string(constants.StatusUploaded)),
		)).
		Query()
	return r.guardedUpdate(ctx, id, runID, query, args)
}

func (r *statementRepository) Finish(ctx context.Context, id, runID uuid.UUID, status constants.StatementStatus) error {
	query, args := r.db.builder().Update(statementsTable).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("run_id", runID),
			entsql.In("status", string(constants.StatusUploaded), string(constants.StatusExtracted)),
		)).
		Query()
	return r.guardedUpdate(ctx, id, runID, query, args)
}

// guardedUpdate runs a run-scoped update; zero rows means the run lost ownership.
func (r *statementRepository) guardedUpdate(ctx context.Context, id, runID uuid.UUID, query string, args []any) error {
	n, err := r.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("%w: update statement: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("statement %s run %s: %w", id, runID, common.ErrRunSuperseded)
	}
	return nil
}

func (r *statementRepository) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := r.db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *statementRepository) AppendError(ctx context.Context, id, runID uuid.UUID, code, message string) error {
	query, args := r.db.builder().Insert(errorsTable).
		Columns("statement_id", "run_id", "code", "message", "created_at").
		Values(id, runID, code, message, time.Now().UTC()).
		Query()
	if _, err := r.db.sql.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("processing error append failed", "statement_id", id, "code", code, "error", err)
		return fmt.Errorf("%w: append processing error: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *statementRepository) ListErrors(ctx context.Context, id uuid.UUID) ([]entity.ProcessingError, error) {
	query, args := r.db.builder().Select("run_id", "code", "message", "created_at").
		From(entsql.Table(errorsTable)).
		Where(entsql.EQ("statement_id", id)).
		OrderBy("id").
		Query()
	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list processing errors: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.ProcessingError
	for rows.Next() {
		var (
			pe      entity.ProcessingError
			created any
		)
		if err := rows.Scan(&pe.RunID, &pe.Code, &pe.Message, &created); err != nil {
			return nil, fmt.Errorf("%w: scan processing error: %v", common.ErrDatabase, err)
		}
		if pe.CreatedAt, err = asTime(created); err != nil {
			return nil, err
		}
		pe.Seq = len(out) + 1
		out = append(out, pe)
	}
	return out, rows.Err()
}

func scanStatement(row scanner) (*entity.Statement, error) {
	var (
		st                      entity.Statement
		status                  string
		text, summary, provider sql.NullString
		conf                    sql.NullFloat64
		created, updated        any
	)
	err := row.Scan(
		&st.ID, &st.RunID, &st.ObjectRef, &st.MIMEType, &st.Filename,
		&st.AccountName, &st.BankName, &st.Month, &st.Year, &st.Currency,
		&status, &text, &summary, &provider, &conf,
		&st.TransactionsFound, &st.TransactionsImported, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	st.Status = constants.StatementStatus(status)
	st.ExtractedText = text.String
	st.ExtractionProvider = provider.String
	st.ExtractionConfidence = float32Ptr(conf)
	if summary.Valid && summary.String != "" {
		var ps entity.ParsedSummary
		if err := json.Unmarshal([]byte(summary.String), &ps); err != nil {
			return nil, fmt.Errorf("decode parsed summary: %w", err)
		}
		st.ParsedSummary = &ps
	}
	if st.CreatedAt, err = asTime(created); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = asTime(updated); err != nil {
		return nil, err
	}
	return &st, nil
}
