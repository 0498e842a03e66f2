package constants

// StatementStatus is the canonical lifecycle status stored in statements.status.
type StatementStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded    StatementStatus = "uploaded"     // accepted, run pending or in progress
	StatusExtracted   StatementStatus = "extracted"    // usable text, parse/normalize/persist in progress
	StatusNeedsReview StatementStatus = "needs_review" // text below minimum content, manual handling
	StatusCompleted   StatementStatus = "completed"    // transactions persisted (possibly zero)
	StatusFailed      StatementStatus = "failed"       // terminal failure, see processing errors
)

var allStatuses = []StatementStatus{
	StatusUploaded,
	StatusExtracted,
	StatusNeedsReview,
	StatusCompleted,
	StatusFailed,
}

// ParseStatus returns the status for s, or false when s is not a known value.
func ParseStatus(s string) (StatementStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether a run may end in this status.
func (s StatementStatus) IsTerminal() bool {
	switch s {
	case StatusNeedsReview, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// RetryableStatuses lists the statuses an explicit retry may start from.
func RetryableStatuses() []StatementStatus {
	return []StatementStatus{StatusNeedsReview, StatusFailed, StatusCompleted}
}

// IsRetryable reports whether an explicit retry may re-enter uploaded from s.
func (s StatementStatus) IsRetryable() bool {
	for _, r := range RetryableStatuses() {
		if s == r {
			return true
		}
	}
	return false
}

// Direction is the money-flow direction of a transaction.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Extraction provider names recorded as statements.extraction_provider.
const (
	ProviderPDFText  = "pdf-text"
	ProviderCloudOCR = "cloud-ocr"
	ProviderLocalOCR = "local-ocr"
)
