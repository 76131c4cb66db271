package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды комиссий
const (
	FeeKindEscrow     = "escrow"
	FeeKindDispute    = "dispute"
	FeeKindArbitrator = "arbitrator"
)

// MaxFeeBP — верхняя граница ставки: 10000 б.п. = 100%.
const MaxFeeBP = 10000

// FeeConfig хранит ставки комиссий и административные адреса.
// Единственная строка, создаётся один раз при инициализации.
type FeeConfig struct {
	EscrowFeeBP      int64     `db:"escrow_fee_bp" json:"escrow_fee_bp"`
	DisputeFeeBP     int64     `db:"dispute_fee_bp" json:"dispute_fee_bp"`
	ArbitratorFeeBP  int64     `db:"arbitrator_fee_bp" json:"arbitrator_fee_bp"`
	AdminID          uuid.UUID `db:"admin_id" json:"admin_id"`
	PlatformWalletID uuid.UUID `db:"platform_wallet_id" json:"platform_wallet_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// FeeBreakdown — результат расчёта комиссии. FeeAmount + NetAmount
// всегда в точности равны исходной сумме. Exempted — комиссия, не
// взятая из-за премиум-статуса (0 для обычных пользователей).
type FeeBreakdown struct {
	Amount    int64 `json:"amount"`
	FeeAmount int64 `json:"fee_amount"`
	NetAmount int64 `json:"net_amount"`
	AppliedBP int64 `json:"applied_bp"`
	IsPremium bool  `json:"is_premium"`
	Exempted  int64 `json:"exempted,omitempty"`
}

// FeeRecord — запись в журнале собранных комиссий (append-only).
type FeeRecord struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Kind      string     `db:"kind" json:"kind"`
	Amount    int64      `db:"amount" json:"amount"`
	PayerID   uuid.UUID  `db:"payer_id" json:"payer_id"`
	EscrowID  *uuid.UUID `db:"escrow_id" json:"escrow_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// FeeStats — накопительная статистика по комиссиям.
type FeeStats struct {
	TotalCollected  int64     `db:"total_collected" json:"total_collected"`
	EscrowFees      int64     `db:"escrow_fees" json:"escrow_fees"`
	DisputeFees     int64     `db:"dispute_fees" json:"dispute_fees"`
	ArbitratorFees  int64     `db:"arbitrator_fees" json:"arbitrator_fees"`
	TxCount         int64     `db:"tx_count" json:"tx_count"`
	PremiumExempted int64     `db:"premium_exempted" json:"premium_exempted"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// PremiumUser — пользователь, освобождённый от комиссий.
type PremiumUser struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	AddedBy   uuid.UUID `db:"added_by" json:"added_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
