package parser

import (
	"regexp"
	"strings"
)

// Pattern names, in priority order.
const (
	PatternDateFirst   = "date_first"
	PatternWithBalance = "date_first_balance"
	PatternDateLast    = "date_last"
	PatternCurrency    = "currency_marked"
)

const (
	datePat   = `(\d{1,2}/\d{1,2}(?:/\d{2}(?:\d{2})?)?)`
	numPat    = `\d[\d,]*\.\d{2}`
	amountPat = `(` + numPat + `|(?i:n/a))`
	signPat   = `(?:\s*([+-]))?`
)

var (
	reDateFirst   = regexp.MustCompile(`^` + datePat + `\s+(.+?)\s+` + amountPat + signPat + `$`)
	reWithBalance = regexp.MustCompile(`^` + datePat + `\s+(.+?)\s+(\$?` + numPat + `)` + signPat + `\s+(-?\$?` + numPat + `)$`)
	reDateLast    = regexp.MustCompile(`^(.+?)\s+` + amountPat + signPat + `\s+` + datePat + `$`)
	reCurrency    = regexp.MustCompile(`^` + datePat + `\s+(.+?)\s+\$\s?(` + numPat + `)` + signPat + `$`)

	// a description that still ends in an amount, signed or not, means a balance column follows
	reTrailingAmount = regexp.MustCompile(`(?:^|\s)-?\$?\d[\d,]*\.\d{2}\s*[+-]?$`)

	reCheckNo = regexp.MustCompile(`(?i)\b(?:check|chk|cheque)\s*(?:no\.?|#)?\s*(\d{3,})\b`)
)

type txnRecognizer struct {
	name    string
	weight  float32
	re      *regexp.Regexp
	match   func(m []string) bool
	extract func(m []string) Candidate
}

var transactionRecognizers = []txnRecognizer{
	{
		name:   PatternDateFirst,
		weight: 1.0,
		re:     reDateFirst,
		match:  func(m []string) bool { return plainDescription(m[2]) },
		extract: func(m []string) Candidate {
			return Candidate{RawDate: m[1], Description: m[2], RawAmount: m[3], Sign: m[4]}
		},
	},
	{
		name:   PatternWithBalance,
		weight: 0.95,
		re:     reWithBalance,
		extract: func(m []string) Candidate {
			return Candidate{RawDate: m[1], Description: m[2], RawAmount: m[3], Sign: m[4], RawBalance: m[5]}
		},
	},
	{
		name:   PatternDateLast,
		weight: 0.85,
		re:     reDateLast,
		extract: func(m []string) Candidate {
			return Candidate{Description: m[1], RawAmount: m[2], Sign: m[3], RawDate: m[4]}
		},
	},
	{
		name:   PatternCurrency,
		weight: 0.9,
		re:     reCurrency,
		extract: func(m []string) Candidate {
			return Candidate{RawDate: m[1], Description: m[2], RawAmount: m[3], Sign: m[4]}
		},
	},
}

// plainDescription rejects date-first splits that left a balance column or a currency
// marker in the description; a later pattern reads those lines correctly.
func plainDescription(desc string) bool {
	return !reTrailingAmount.MatchString(desc) && !strings.HasSuffix(desc, "$")
}

// PatternWeight is the confidence weight of a named pattern, 0 when unknown.
func PatternWeight(name string) float32 {
	for _, r := range transactionRecognizers {
		if r.name == name {
			return r.weight
		}
	}
	return 0
}

// matchTransaction applies the first recognizer that matches the line. ok is false when no
// pattern matched (reason empty) or the matched line was unusable (reason set).
func matchTransaction(line string) (c Candidate, ok bool, reason string) {
	for _, r := range transactionRecognizers {
		m := r.re.FindStringSubmatch(line)
		if m == nil || (r.match != nil && !r.match(m)) {
			continue
		}
		c = r.extract(m)
		c.Pattern = r.name
		c.Weight = r.weight
		c.Description = strings.Join(strings.Fields(c.Description), " ")
		c.Description = strings.TrimSpace(strings.TrimSuffix(c.Description, " $"))
		if c.Description == "" {
			return Candidate{}, false, "empty description"
		}

		amt, err := ParseAmount(c.RawAmount)
		if err != nil {
			return Candidate{}, false, err.Error()
		}
		c.Amount = amt

		if c.RawBalance != "" {
			if b, err := ParseBalance(c.RawBalance); err == nil {
				c.Balance = &b
			}
		}
		c.Direction = InferDirection(c.Description, c.Sign)
		c.CheckNo = ExtractCheckNo(c.Description)
		return c, true, ""
	}
	return Candidate{}, false, ""
}

// ExtractCheckNo returns the check number in descriptions like "CHECK 1234" or "CHK #1234".
func ExtractCheckNo(description string) string {
	if m := reCheckNo.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}
