package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды лимитируемых операций
const (
	OpKindDeposit = "deposit"
	OpKindRelease = "release"
	OpKindDispute = "dispute"
)

// RateLimit — счётчик вызовов в фиксированном окне для пары
// (вызывающий, вид операции). Окно перезапускается целиком:
// на границе окна допустим всплеск до 2x лимита.
type RateLimit struct {
	CallerID     uuid.UUID `db:"caller_id" json:"caller_id"`
	Kind         string    `db:"kind" json:"kind"`
	CurrentCalls int64     `db:"current_calls" json:"current_calls"`
	WindowStart  time.Time `db:"window_start" json:"window_start"`
}

// RateLimitBypass — административный флаг обхода лимитов.
type RateLimitBypass struct {
	CallerID  uuid.UUID `db:"caller_id" json:"caller_id"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
