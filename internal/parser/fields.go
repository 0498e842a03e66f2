package parser

import (
	"regexp"
	"strings"
)

const balanceAmount = `(\(?-?\$?\s?\d[\d,]*\.\d{2}\)?)`

var (
	reBank = regexp.MustCompile(`(?i)\b(jpmorgan chase|chase|bank of america|wells fargo|citibank|td bank|capital one|pnc|u\.s\. bank|us bank|hsbc|barclays|santander|truist|ally bank|ally)\b`)

	reAccount = regexp.MustCompile(`(?i)\b(?:account|acct)\.?\s*(?:number|no\.?|#|ending\s+in)\s*[:#]?\s*([xX*]*\d[\d-]{2,}\d)\b`)

	reOpening = regexp.MustCompile(`(?i)\b(?:opening|beginning|previous)\s+balance\b.*?` + balanceAmount)
	reClosing = regexp.MustCompile(`(?i)\b(?:closing|ending|new)\s+balance\b.*?` + balanceAmount)

	periodDate = `\d{1,2}/\d{1,2}/\d{2,4}|[a-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}`
	rePeriod   = regexp.MustCompile(`(?i)\bperiod\b[^0-9a-z]*(?:from\s+)?(` + periodDate + `)\s*(?:-|–|to|through|thru)\s*(` + periodDate + `)`)
)

// bankNames maps a lower-cased bank match to its display name.
var bankNames = map[string]string{
	"jpmorgan chase":  "Chase",
	"chase":           "Chase",
	"bank of america": "Bank of America",
	"wells fargo":     "Wells Fargo",
	"citibank":        "Citibank",
	"td bank":         "TD Bank",
	"capital one":     "Capital One",
	"pnc":             "PNC",
	"u.s. bank":       "U.S. Bank",
	"us bank":         "U.S. Bank",
	"hsbc":            "HSBC",
	"barclays":        "Barclays",
	"santander":       "Santander",
	"truist":          "Truist",
	"ally bank":       "Ally",
	"ally":            "Ally",
}

// fieldRecognizer sets one singleton field. apply reports whether the match was usable;
// an unusable match leaves the field open for later lines.
type fieldRecognizer struct {
	name  string
	re    *regexp.Regexp
	apply func(s *Summary, m []string) bool
}

var fieldRecognizers = []fieldRecognizer{
	{
		name: "bank_name",
		re:   reBank,
		apply: func(s *Summary, m []string) bool {
			key := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
			s.BankName = bankNames[key]
			return s.BankName != ""
		},
	},
	{
		name: "account_number",
		re:   reAccount,
		apply: func(s *Summary, m []string) bool {
			if countDigits(m[1]) < 4 {
				return false
			}
			s.AccountNumber = m[1]
			return true
		},
	},
	{
		name: "period",
		re:   rePeriod,
		apply: func(s *Summary, m []string) bool {
			s.PeriodStart, s.PeriodEnd = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			return true
		},
	},
	{
		name: "opening_balance",
		re:   reOpening,
		apply: func(s *Summary, m []string) bool {
			d, err := ParseBalance(m[1])
			if err != nil {
				return false
			}
			s.OpeningBalance = &d
			return true
		},
	},
	{
		name: "closing_balance",
		re:   reClosing,
		apply: func(s *Summary, m []string) bool {
			d, err := ParseBalance(m[1])
			if err != nil {
				return false
			}
			s.ClosingBalance = &d
			return true
		},
	},
}

func isBalanceLine(line string) bool {
	return reOpening.MatchString(line) || reClosing.MatchString(line)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
