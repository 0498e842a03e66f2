package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Statement is one uploaded bank statement and its processing state.
// Declared fields are stored verbatim from the uploader and never overwritten by parsing.
type Statement struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	ObjectRef string    `json:"object_ref"`
	MIMEType  string    `json:"mime_type"`
	Filename  string    `json:"filename,omitempty"`

	AccountName string `json:"account_name"`
	BankName    string `json:"bank_name"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	Currency    string `json:"currency"`

	Status               constants.StatementStatus `json:"status"`
	ExtractedText        string                    `json:"extracted_text,omitempty"`
	ParsedSummary        *ParsedSummary            `json:"parsed_summary,omitempty"`
	ExtractionProvider   string                    `json:"extraction_provider,omitempty"`
	ExtractionConfidence *float32                  `json:"extraction_confidence,omitempty"`
	TransactionsFound    int                       `json:"transactions_found"`
	TransactionsImported int                       `json:"transactions_imported"`
	ProcessingErrors     []ProcessingError         `json:"processing_errors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParsedSummary is what the field parser recognized in the statement text.
type ParsedSummary struct {
	BankName       string           `json:"bank_name,omitempty"`
	AccountNumber  string           `json:"account_number,omitempty"`
	Period         *Period          `json:"period,omitempty"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
}

// Period holds the raw statement period bounds as printed.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ProcessingError is one entry of a statement's append-only error log.
type ProcessingError struct {
	Seq       int       `json:"seq"`
	RunID     uuid.UUID `json:"run_id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Upload is what the front end submits: bytes, declared MIME type and metadata.
type Upload struct {
	Data        []byte
	MIMEType    string
	Filename    string
	AccountName string `json:"account_name"`
	BankName    string `json:"bank_name"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	Currency    string `json:"currency"`
}
