package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/normalize"
)

const (
	transactionsTable = "transactions"
	insertChunk       = 200
)

var (
	transactionColumns = []string{
		"id", "statement_id", "txn_date", "description", "amount",
		"direction", "balance", "check_no", "confidence", "created_at",
	}
	signatureColumns = []string{"statement_id", "txn_date", "description", "amount", "direction"}
)

type TransactionRepository interface {
	// Signatures loads the dedup keys already stored for a statement.
	Signatures(ctx context.Context, statementID uuid.UUID) (normalize.SignatureSet, error)
	ListByStatement(ctx context.Context, statementID uuid.UUID) ([]entity.Transaction, error)
	// ImportBatch inserts records, adds found and the inserted count to the statement
	// counters and completes the run, all in one database transaction.
	ImportBatch(ctx context.Context, statementID, runID uuid.UUID, found int, records []entity.Transaction) (int, error)
}

type transactionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewTransactionRepository(db *DB, logger *slog.Logger) TransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &transactionRepository{db: db, logger: logger}
}

func (r *transactionRepository) Signatures(ctx context.Context, statementID uuid.UUID) (normalize.SignatureSet, error) {
	txns, err := r.list(ctx, statementID, "txn_date", "description", "amount", "direction")
	if err != nil {
		return nil, err
	}
	set := make(normalize.SignatureSet, len(txns))
	for _, t := range txns {
		set.Add(normalize.SignatureOf(t))
	}
	return set, nil
}

func (r *transactionRepository) ListByStatement(ctx context.Context, statementID uuid.UUID) ([]entity.Transaction, error) {
	return r.list(ctx, statementID, transactionColumns...)
}

func (r *transactionRepository) list(ctx context.Context, statementID uuid.UUID, columns ...string) ([]entity.Transaction, error) {
	query, args := r.db.builder().Select(columns...).
		From(entsql.Table(transactionsTable)).
		Where(entsql.EQ("statement_id", statementID)).
		OrderBy("txn_date", "created_at").
		Query()
	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", common.ErrDatabase, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionRepository) ImportBatch(ctx context.Context, statementID, runID uuid.UUID, found int, records []entity.Transaction) (int, error) {
	if found < len(records) {
		return 0, fmt.Errorf("%w: %d records from %d candidates", common.ErrInvalidInput, len(records), found)
	}
	start := time.Now()
	var inserted int64

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for lo := 0; lo < len(records); lo += insertChunk {
			hi := min(lo+insertChunk, len(records))
			ins := r.db.builder().Insert(transactionsTable).Columns(transactionColumns...)
			for _, t := range records[lo:hi] {
				id := t.ID
				if id == uuid.Nil {
					id = uuid.New()
				}
				ins = ins.Values(id, statementID, t.Date.Format(time.DateOnly), t.Description,
					t.Amount.StringFixed(2), string(t.Direction), nullDecimal(t.Balance),
					nullString(t.CheckNo), float64(t.Confidence), now)
			}
			query, args := ins.OnConflict(entsql.ConflictColumns(signatureColumns...), entsql.DoNothing()).Query()
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("insert transactions: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += n
		}

		query, args := r.db.builder().Update(statementsTable).
			Add("transactions_found", found).
			Add("transactions_imported", inserted).
			Set("status", string(constants.StatusCompleted)).
			Set("updated_at", now).
			Where(entsql.And(
				entsql.EQ("id", statementID),
				entsql.EQ("run_id", runID),
				entsql.EQ("status", string(constants.StatusExtracted)),
			)).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update statement counters: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("statement %s run %s: %w", statementID, runID, common.ErrRunSuperseded)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("transaction import failed",
			"statement_id", statementID, "run_id", runID, "records", len(records), "error", err)
		return 0, err
	}

	r.logger.Info("transactions imported",
		"statement_id", statementID,
		"run_id", runID,
		"found", found,
		"inserted", inserted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return int(inserted), nil
}

func scanTransaction(row scanner, columns []string) (entity.Transaction, error) {
	var (
		t                 entity.Transaction
		date, created     any
		amount, direction string
		balance, checkNo  sql.NullString
	)
	dest := make([]any, len(columns))
	for i, c := range columns {
		switch c {
		case "id":
			dest[i] = &t.ID
		case "statement_id":
			dest[i] = &t.StatementID
		case "txn_date":
			dest[i] = &date
		case "description":
			dest[i] = &t.Description
		case "amount":
			dest[i] = &amount
		case "direction":
			dest[i] = &direction
		case "balance":
			dest[i] = &balance
		case "check_no":
			dest[i] = &checkNo
		case "confidence":
			dest[i] = &t.Confidence
		case "created_at":
			dest[i] = &created
		default:
			return t, fmt.Errorf("unknown transaction column %q", c)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return t, err
	}

	var err error
	if t.Date, err = asDate(date); err != nil {
		return t, err
	}
	if t.CreatedAt, err = asTime(created); err != nil {
		return t, err
	}
	if t.Amount, err = decimalFromString(amount); err != nil {
		return t, err
	}
	if t.Balance, err = decimalPtr(balance); err != nil {
		return t, err
	}
	t.Direction = constants.Direction(direction)
	t.CheckNo = checkNo.String
	return t, nil
}
