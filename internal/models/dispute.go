package models

import (
	"time"

	"github.com/google/uuid"
)

// Решения арбитража
const (
	DisputeOutcomeNone       = "none"
	DisputeOutcomeFavorPayer = "favor_payer"
	DisputeOutcomeFavorPayee = "favor_payee"
)

// DisputeCase представляет запись в реестре арбитража.
// На одну работу допускается не более одной записи; после
// Resolved = true запись неизменяема.
type DisputeCase struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	JobID       uuid.UUID  `db:"job_id" json:"job_id"`
	InitiatorID uuid.UUID  `db:"initiator_id" json:"initiator_id"`
	Reason      string     `db:"reason" json:"reason"`
	Resolved    bool       `db:"resolved" json:"resolved"`
	Outcome     string     `db:"outcome" json:"outcome"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// ArbitrationConfig хранит назначенного арбитра реестра.
type ArbitrationConfig struct {
	ArbitratorID uuid.UUID `db:"arbitrator_id" json:"arbitrator_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
