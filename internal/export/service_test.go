package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

func TestTransactionsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	stmts := repository.NewStatementRepository(db, nil)
	txns := repository.NewTransactionRepository(db, nil)

	st := &entity.Statement{
		ID: uuid.New(), RunID: uuid.New(), ObjectRef: "statements/a.pdf", MIMEType: "application/pdf",
		AccountName: "Operating", BankName: "Chase", Month: 1, Year: 2024, Currency: "USD",
		Status: constants.StatusUploaded,
	}
	require.NoError(t, stmts.Create(ctx, st))
	require.NoError(t, stmts.SaveExtraction(ctx, st.ID, st.RunID, constants.StatusExtracted, repository.Extraction{}))

	bal := decimal.RequireFromString("1000.00")
	records := []entity.Transaction{
		{
			ID: uuid.New(), StatementID: st.ID, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Description: "GROCERY STORE PURCHASE", Amount: decimal.RequireFromString("125.50"),
			Direction: constants.Debit, Balance: &bal, Confidence: 1,
		},
		{
			ID: uuid.New(), StatementID: st.ID, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Description: "PAYROLL", Amount: decimal.RequireFromString("3500.00"),
			Direction: constants.Credit, Confidence: 0.9,
		},
	}
	_, err = txns.ImportBatch(ctx, st.ID, st.RunID, len(records), records)
	require.NoError(t, err)

	out, err := NewService(stmts, txns, nil).TransactionsXLSX(ctx, st.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Contains(t, rows[0][0], "Chase Operating 2024-01")
	assert.Equal(t, "Date", rows[1][0])
	assert.Equal(t, "2024-01-01", rows[2][0])
	assert.Equal(t, "GROCERY STORE PURCHASE", rows[2][1])
	assert.Equal(t, "debit", rows[2][2])

	raw, err := f.GetCellValue(sheet, "D3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "-125.5", raw)
	raw, err = f.GetCellValue(sheet, "D4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "3500", raw)
}

func TestTransactionsXLSX_UnknownStatement(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	svc := NewService(repository.NewStatementRepository(db, nil), repository.NewTransactionRepository(db, nil), nil)
	_, err = svc.TransactionsXLSX(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
