package parser

import (
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Keyword sets are checked in this order; the first set with a hit decides.
var (
	creditKeywords = []string{"deposit", "credit", "payment received", "refund", "transfer in", "interest"}
	debitKeywords  = []string{"withdrawal", "debit", "payment", "purchase", "fee", "charge", "transfer out"}
)

// InferDirection returns the direction for a transaction line.
// An explicit trailing sign wins, then keywords, then debit.
func InferDirection(description, sign string) constants.Direction {
	switch sign {
	case "+":
		return constants.Credit
	case "-":
		return constants.Debit
	}
	d := strings.ToLower(description)
	if containsAny(d, creditKeywords) {
		return constants.Credit
	}
	if containsAny(d, debitKeywords) {
		return constants.Debit
	}
	return constants.Debit
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
