package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы эскроу
const (
	EscrowStatusInitialized = "initialized"
	EscrowStatusFunded      = "funded"
	EscrowStatusReleased    = "released"
	EscrowStatusDisputed    = "disputed"
	EscrowStatusResolved    = "resolved"
)

// Исходы спора по эскроу
const (
	EscrowOutcomePayerWins = "payer_wins"
	EscrowOutcomePayeeWins = "payee_wins"
	EscrowOutcomeSplit     = "split"
)

// Escrow представляет кастодиальный счёт по одной работе.
// PayerID, PayeeID и Amount неизменяемы после создания; каждый
// timestamp выставляется ровно один раз при соответствующем переходе.
type Escrow struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	JobID          uuid.UUID  `db:"job_id" json:"job_id"`
	PayerID        uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID        uuid.UUID  `db:"payee_id" json:"payee_id"`
	Amount         int64      `db:"amount" json:"amount"`
	Status         string     `db:"status" json:"status"`
	DisputeOutcome *string    `db:"dispute_outcome" json:"dispute_outcome,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	FundedAt       *time.Time `db:"funded_at" json:"funded_at,omitempty"`
	ReleasedAt     *time.Time `db:"released_at" json:"released_at,omitempty"`
	DisputedAt     *time.Time `db:"disputed_at" json:"disputed_at,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Settlement описывает итоговое распределение средств при разрешении спора.
type Settlement struct {
	PayerNet      int64 `json:"payer_net"`
	PayeeNet      int64 `json:"payee_net"`
	FeesCollected int64 `json:"fees_collected"`
}
