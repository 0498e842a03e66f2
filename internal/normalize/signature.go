package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Signature is the dedup key of a transaction within its statement.
type Signature string

// SignatureSet holds the signatures already persisted for a statement.
type SignatureSet map[Signature]struct{}

func NewSignatureSet(sigs ...Signature) SignatureSet {
	set := make(SignatureSet, len(sigs))
	for _, s := range sigs {
		set[s] = struct{}{}
	}
	return set
}

func (s SignatureSet) Has(sig Signature) bool {
	_, ok := s[sig]
	return ok
}

func (s SignatureSet) Add(sig Signature) { s[sig] = struct{}{} }

// MakeSignature joins date, description, amount and direction into a key.
// Descriptions compare case-insensitively with whitespace collapsed.
func MakeSignature(date time.Time, description string, amount decimal.Decimal, dir constants.Direction) Signature {
	return Signature(strings.Join([]string{
		date.Format(time.DateOnly),
		strings.ToUpper(CanonicalDescription(description)),
		amount.StringFixed(2),
		string(dir),
	}, "|"))
}

// SignatureOf is the signature of a persisted transaction.
func SignatureOf(t entity.Transaction) Signature {
	return MakeSignature(t.Date, t.Description, t.Amount, t.Direction)
}

// CanonicalDescription trims and collapses inner whitespace.
func CanonicalDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
