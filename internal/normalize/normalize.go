// Package normalize resolves parser candidates into canonical transactions and
// filters out those already persisted for the statement.
package normalize

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/parser"
)

// Drop is a candidate that did not become a record.
type Drop struct {
	Line   int
	Reason string
}

// Result holds surviving records in candidate order.
// Duplicates counts candidates matching an existing or earlier signature.
type Result struct {
	Records    []entity.Transaction
	Dropped    []Drop
	Duplicates int
}

// Normalizer is pure apart from its clock, which supplies the year for MM/DD dates.
type Normalizer struct {
	Now func() time.Time
}

func New() *Normalizer {
	return &Normalizer{Now: time.Now}
}

func (n *Normalizer) refYear() int {
	if n == nil || n.Now == nil {
		return time.Now().Year()
	}
	return n.Now().Year()
}

// Normalize converts candidates into transactions for statementID. existing is read
// only; duplicates inside this batch are also removed.
func (n *Normalizer) Normalize(statementID uuid.UUID, candidates []parser.Candidate, existing SignatureSet, extractionConfidence *float32) Result {
	year := n.refYear()
	seen := make(SignatureSet, len(candidates))
	var res Result

	for _, c := range candidates {
		date, err := ResolveDate(c.RawDate, year)
		if err != nil {
			res.Dropped = append(res.Dropped, Drop{Line: c.Line, Reason: err.Error()})
			continue
		}
		desc := CanonicalDescription(c.Description)
		amount := c.Amount.Round(2)
		if desc == "" || !amount.IsPositive() {
			res.Dropped = append(res.Dropped, Drop{Line: c.Line, Reason: "empty description or non-positive amount"})
			continue
		}

		sig := MakeSignature(date, desc, amount, c.Direction)
		if existing.Has(sig) || seen.Has(sig) {
			res.Duplicates++
			continue
		}
		seen.Add(sig)

		res.Records = append(res.Records, entity.Transaction{
			ID:          uuid.New(),
			StatementID: statementID,
			Date:        date,
			Description: desc,
			Amount:      amount,
			Direction:   c.Direction,
			Balance:     c.Balance,
			CheckNo:     c.CheckNo,
			Confidence:  recordConfidence(c.Weight, extractionConfidence),
		})
	}
	return res
}

func recordConfidence(weight float32, extraction *float32) float32 {
	if weight <= 0 {
		weight = 1
	}
	if extraction == nil {
		return weight
	}
	c := weight * *extraction
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
