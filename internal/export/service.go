package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

const sheet = "Transactions"

// Service produces XLSX bytes for statement exports.
type Service struct {
	statements   repository.StatementRepository
	transactions repository.TransactionRepository
	logger       *slog.Logger
}

func NewService(statements repository.StatementRepository, transactions repository.TransactionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{statements: statements, transactions: transactions, logger: logger}
}

// TransactionsXLSX returns a workbook with one row per persisted transaction of the statement.
// Debits are written as negative amounts so the column sums to the net change.
func (s *Service) TransactionsXLSX(ctx context.Context, statementID uuid.UUID) ([]byte, error) {
	start := time.Now()

	st, err := s.statements.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	txns, err := s.transactions.ListByStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("%s %s %04d-%02d (%s)", st.BankName, st.AccountName, st.Year, st.Month, st.Currency)
	_ = f.SetCellValue(sheet, "A1", title)

	headers := []string{"Date", "Description", "Direction", "Amount", "Balance", "Check No", "Confidence"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, h)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	row := 3
	for _, t := range txns {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		amount := t.Amount
		if t.Direction == constants.Debit {
			amount = amount.Neg()
		}
		amt, _ := amount.Float64()

		write(1, t.Date.Format("2006-01-02"))
		write(2, t.Description)
		write(3, string(t.Direction))
		write(4, amt)
		if t.Balance != nil {
			bal, _ := t.Balance.Float64()
			write(5, bal)
		}
		write(6, t.CheckNo)
		write(7, t.Confidence)
		row++
	}

	if len(txns) > 0 {
		_ = f.SetCellStyle(sheet, "D3", fmt.Sprintf("E%d", row-1), money)
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 48)
	_ = f.SetColWidth(sheet, "C", "C", 10)
	_ = f.SetColWidth(sheet, "D", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"statement_id", statementID.String(),
		"rows", len(txns),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
