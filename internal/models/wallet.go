package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы транзакций
const (
	TransactionTypeTopUp         = "topup"
	TransactionTypeEscrowHold    = "escrow_hold"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
	TransactionTypeFee           = "fee"
	TransactionTypeWithdrawal    = "withdrawal"
)

// UserBalance представляет баланс пользователя в минорных единицах.
type UserBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Available int64     `db:"available" json:"available"`
	Frozen    int64     `db:"frozen" json:"frozen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction — запись в журнале движений средств.
type Transaction struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	JobID       *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	Type        string     `db:"type" json:"type"`
	Amount      int64      `db:"amount" json:"amount"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
