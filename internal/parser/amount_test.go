package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "125.50", want: "125.50"},
		{in: "3,500.00", want: "3500"},
		{in: "$ 1,234.56", want: "1234.56"},
		{in: "0.00", wantErr: true},
		{in: "-5.00", wantErr: true},
		{in: "N/A", wantErr: true},
		{in: "", wantErr: true},
		{in: "12-34", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrCandidateParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, dec(tt.want).StringFixed(2), got.StringFixed(2))
		})
	}
}

func TestParseBalance_Negative(t *testing.T) {
	got, err := ParseBalance("(1,200.00)")
	require.NoError(t, err)
	assert.Equal(t, "-1200.00", got.StringFixed(2))

	got, err = ParseBalance("-$15.25")
	require.NoError(t, err)
	assert.Equal(t, "-15.25", got.StringFixed(2))
}

func TestInferDirection(t *testing.T) {
	tests := []struct {
		desc string
		sign string
		want constants.Direction
	}{
		{"GROCERY", "+", constants.Credit},
		{"DEPOSIT", "-", constants.Debit},
		{"PAYMENT RECEIVED THANK YOU", "", constants.Credit},
		{"ONLINE PAYMENT", "", constants.Debit},
		{"Transfer In From Savings", "", constants.Credit},
		{"TRANSFER OUT", "", constants.Debit},
		{"MONTHLY FEE", "", constants.Debit},
		{"SOMETHING ELSE", "", constants.Debit},
	}
	for _, tt := range tests {
		t.Run(tt.desc+tt.sign, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDirection(tt.desc, tt.sign))
		})
	}
}

func TestExtractCheckNo(t *testing.T) {
	assert.Equal(t, "1234", ExtractCheckNo("CHECK 1234"))
	assert.Equal(t, "1234", ExtractCheckNo("CHK #1234"))
	assert.Equal(t, "881", ExtractCheckNo("Check No. 881 paid"))
	assert.Equal(t, "", ExtractCheckNo("CHECKING TRANSFER 1234"))
}
