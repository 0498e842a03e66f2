package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Transaction is a canonical, persisted statement line.
// (StatementID, Date, Description, Amount, Direction) is unique.
type Transaction struct {
	ID          uuid.UUID           `json:"id"`
	StatementID uuid.UUID           `json:"statement_id"`
	Date        time.Time           `json:"date"`
	Description string              `json:"description"`
	Amount      decimal.Decimal     `json:"amount"`
	Direction   constants.Direction `json:"direction"`
	Balance     *decimal.Decimal    `json:"balance,omitempty"`
	CheckNo     string              `json:"check_no,omitempty"`
	Confidence  float32             `json:"confidence"`
	CreatedAt   time.Time           `json:"created_at"`
}
