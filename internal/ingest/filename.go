package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// Defaults fill in metadata a filename does not carry.
type Defaults struct {
	Bank     string
	Account  string
	Currency string
}

// Metadata is what an inbox file declares about itself.
type Metadata struct {
	Bank     string
	Account  string
	Year     int
	Month    int
	Currency string
}

var (
	// <bank>_<account>_<YYYY>-<MM>.<ext>
	reConvention = regexp.MustCompile(`^([^_]+)_(.+)_((?:19|20)\d{2})-(0[1-9]|1[0-2])$`)
	rePeriodOnly = regexp.MustCompile(`((?:19|20)\d{2})[-_.]?(0[1-9]|1[0-2])`)
)

// ParseFilename reads statement metadata from a file name. Names that do not follow
// the convention fall back to defaults for bank and account, but a period is required.
func ParseFilename(name string, def Defaults) (Metadata, error) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	md := Metadata{Bank: def.Bank, Account: def.Account, Currency: def.Currency}

	if m := reConvention.FindStringSubmatch(stem); m != nil {
		md.Bank = humanize(m[1])
		md.Account = humanize(m[2])
		md.Year, _ = strconv.Atoi(m[3])
		md.Month, _ = strconv.Atoi(m[4])
	} else if m := rePeriodOnly.FindStringSubmatch(stem); m != nil {
		md.Year, _ = strconv.Atoi(m[1])
		md.Month, _ = strconv.Atoi(m[2])
	} else {
		return md, common.NewAppError(common.CodeValidation,
			fmt.Sprintf("cannot infer statement period from %q", base), common.ErrInvalidInput)
	}

	if md.Bank == "" || md.Account == "" {
		return md, common.NewAppError(common.CodeValidation,
			fmt.Sprintf("%q has no bank or account and no inbox defaults are set", base), common.ErrInvalidInput)
	}
	return md, nil
}

// humanize turns "wells-fargo" into "wells fargo".
func humanize(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '.' || r == ' ' }), " ")
}
