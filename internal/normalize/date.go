package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// ResolveDate turns MM/DD, MM/DD/YY or MM/DD/YYYY into a UTC date. Two-digit years are
// 2000-based and MM/DD takes refYear. Dates that do not exist on the calendar are rejected.
func ResolveDate(raw string, refYear int) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, fmt.Errorf("%w: date %q", common.ErrCandidateParse, raw)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || strings.Trim(p, "0123456789") != "" {
			return time.Time{}, fmt.Errorf("%w: date %q", common.ErrCandidateParse, raw)
		}
		nums[i] = n
	}

	month, day, year := nums[0], nums[1], refYear
	if len(nums) == 3 {
		switch len(parts[2]) {
		case 2:
			year = 2000 + nums[2]
		case 4:
			year = nums[2]
		default:
			return time.Time{}, fmt.Errorf("%w: date %q has a %d-digit year", common.ErrCandidateParse, raw, len(parts[2]))
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: date %q out of range", common.ErrCandidateParse, raw)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: date %q is not a calendar date", common.ErrCandidateParse, raw)
	}
	return t, nil
}
