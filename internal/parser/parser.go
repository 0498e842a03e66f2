// Package parser turns extracted statement text into summary fields and transaction
// candidates. Parsing is line oriented and has no side effects.
package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// Candidate is one unvalidated transaction line. Dates stay raw; the normalizer resolves them.
type Candidate struct {
	Line        int
	Pattern     string
	Weight      float32
	RawDate     string
	Description string
	RawAmount   string
	Amount      decimal.Decimal
	Sign        string
	Direction   constants.Direction
	RawBalance  string
	Balance     *decimal.Decimal
	CheckNo     string
}

// Drop is a line that matched a transaction pattern but could not become a candidate.
type Drop struct {
	Line   int
	Text   string
	Reason string
}

// Summary is everything Parse recognized in one document.
type Summary struct {
	BankName       string
	AccountNumber  string
	PeriodStart    string
	PeriodEnd      string
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	Transactions   []Candidate
	Drops          []Drop
}

// Parse scans trimmed non-empty lines in order. Singleton fields take the first matching
// line; each remaining line is tried against the transaction patterns in priority order.
func Parse(text string) Summary {
	var s Summary
	seen := make(map[string]bool, len(fieldRecognizers))

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lineNo := i + 1

		for _, fr := range fieldRecognizers {
			if seen[fr.name] {
				continue
			}
			if m := fr.re.FindStringSubmatch(line); m != nil && fr.apply(&s, m) {
				seen[fr.name] = true
			}
		}

		if isBalanceLine(line) {
			continue
		}
		c, ok, reason := matchTransaction(line)
		if !ok {
			if reason != "" {
				s.Drops = append(s.Drops, Drop{Line: lineNo, Text: line, Reason: reason})
			}
			continue
		}
		c.Line = lineNo
		s.Transactions = append(s.Transactions, c)
	}
	return s
}

// ToEntity converts the summary fields into their persisted shape.
func (s Summary) ToEntity() *entity.ParsedSummary {
	ps := &entity.ParsedSummary{
		BankName:       s.BankName,
		AccountNumber:  s.AccountNumber,
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
	}
	if s.PeriodStart != "" || s.PeriodEnd != "" {
		ps.Period = &entity.Period{Start: s.PeriodStart, End: s.PeriodEnd}
	}
	return ps
}
