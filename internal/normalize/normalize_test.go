package normalize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/parser"
)

func fixedNormalizer() *Normalizer {
	return &Normalizer{Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }}
}

func TestResolveDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "01/05", want: "2024-01-05"},
		{raw: "1/5/24", want: "2024-01-05"},
		{raw: "12/31/2023", want: "2023-12-31"},
		{raw: "02/29/2024", want: "2024-02-29"},
		{raw: "02/29/2023", wantErr: true},
		{raw: "13/01/2024", wantErr: true},
		{raw: "04/31", wantErr: true},
		{raw: "01/05/024", wantErr: true},
		{raw: "2024-01-05", wantErr: true},
		{raw: "1/+5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ResolveDate(tt.raw, 2024)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrCandidateParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
		})
	}
}

func TestNormalize_RecordsAndOrder(t *testing.T) {
	stmtID := uuid.New()
	s := parser.Parse("01/01/2024 GROCERY STORE PURCHASE 125.50 -\n" +
		"01/03 NEWSSTAND 1.00\n" +
		"02/30/2024 IMPOSSIBLE 2.00\n" +
		"01/02/2024 DIRECT DEPOSIT PAYROLL 3,500.00 +")

	conf := float32(0.8)
	res := fixedNormalizer().Normalize(stmtID, s.Transactions, nil, &conf)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "GROCERY STORE PURCHASE", res.Records[0].Description)
	assert.Equal(t, "2024-01-01", res.Records[0].Date.Format(time.DateOnly))
	assert.Equal(t, constants.Debit, res.Records[0].Direction)
	assert.Equal(t, stmtID, res.Records[0].StatementID)
	assert.InDelta(t, 0.8, res.Records[0].Confidence, 1e-6)

	// MM/DD takes the reference year
	assert.Equal(t, "2024-01-03", res.Records[1].Date.Format(time.DateOnly))
	assert.Equal(t, "2024-01-02", res.Records[2].Date.Format(time.DateOnly))
	assert.Equal(t, "3500.00", res.Records[2].Amount.StringFixed(2))

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 3, res.Dropped[0].Line)
}

func TestNormalize_DeduplicatesAgainstExisting(t *testing.T) {
	stmtID := uuid.New()
	candidates := parser.Parse("01/01/2024 GROCERY STORE PURCHASE 125.50 -").Transactions

	first := fixedNormalizer().Normalize(stmtID, candidates, NewSignatureSet(), nil)
	require.Len(t, first.Records, 1)

	existing := NewSignatureSet(SignatureOf(first.Records[0]))
	again := parser.Parse("01/01/2024  grocery   store purchase  125.50 -").Transactions
	second := fixedNormalizer().Normalize(stmtID, again, existing, nil)

	assert.Empty(t, second.Records)
	assert.Equal(t, 1, second.Duplicates)
}

func TestNormalize_DeduplicatesWithinBatch(t *testing.T) {
	candidates := parser.Parse("01/04/2024 COFFEE 4.50\n01/04/2024 COFFEE 4.50\n01/04/2024 COFFEE 4.50 +").Transactions
	require.Len(t, candidates, 3)

	res := fixedNormalizer().Normalize(uuid.New(), candidates, nil, nil)

	require.Len(t, res.Records, 2)
	assert.Equal(t, constants.Debit, res.Records[0].Direction)
	assert.Equal(t, constants.Credit, res.Records[1].Direction)
	assert.Equal(t, 1, res.Duplicates)
}

func TestNormalize_NonPositiveAmountDropped(t *testing.T) {
	c := parser.Candidate{Line: 7, RawDate: "01/01/2024", Description: "X", Amount: decimal.Zero, Direction: constants.Debit}
	res := fixedNormalizer().Normalize(uuid.New(), []parser.Candidate{c}, nil, nil)
	assert.Empty(t, res.Records)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 7, res.Dropped[0].Line)
}

func TestMakeSignature(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := MakeSignature(d, " Grocery  Store ", decimal.RequireFromString("125.5"), constants.Debit)
	b := MakeSignature(d, "GROCERY STORE", decimal.RequireFromString("125.50"), constants.Debit)
	assert.Equal(t, a, b)
	assert.Equal(t, Signature("2024-01-01|GROCERY STORE|125.50|debit"), a)
	assert.NotEqual(t, a, MakeSignature(d, "GROCERY STORE", decimal.RequireFromString("125.50"), constants.Credit))
}

func TestRecordConfidence(t *testing.T) {
	assert.Equal(t, float32(0.9), recordConfidence(0.9, nil))
	half := float32(0.5)
	assert.InDelta(t, 0.425, recordConfidence(0.85, &half), 1e-6)
}

func TestNormalize_CurrencyMarkerDoesNotSplitSignature(t *testing.T) {
	candidates := parser.Parse("01/05/2024 COFFEE $ 4.50 -\n01/05/2024 COFFEE 4.50 -").Transactions
	require.Len(t, candidates, 2)

	res := fixedNormalizer().Normalize(uuid.New(), candidates, nil, nil)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "COFFEE", res.Records[0].Description)
	assert.Equal(t, 1, res.Duplicates)
}

func TestNormalize_RunningBalanceLineKeepsTransactionAmount(t *testing.T) {
	candidates := parser.Parse("01/05/2024 PAYMENT 50.00 - 950.00").Transactions

	res := fixedNormalizer().Normalize(uuid.New(), candidates, nil, nil)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "50.00", res.Records[0].Amount.StringFixed(2))
	require.NotNil(t, res.Records[0].Balance)
	assert.Equal(t, "950.00", res.Records[0].Balance.StringFixed(2))
	assert.Equal(t, MakeSignature(res.Records[0].Date, "PAYMENT", res.Records[0].Amount, constants.Debit), SignatureOf(res.Records[0]))
}
