package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

type RateLimitRepository struct {
	db *sqlx.DB
}

func NewRateLimitRepository(db *sqlx.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Get возвращает счётчик для пары (вызывающий, вид операции) или nil,
// если записи ещё нет.
func (r *RateLimitRepository) Get(ctx context.Context, callerID uuid.UUID, kind string) (*models.RateLimit, error) {
	var entry models.RateLimit
	err := r.db.GetContext(ctx, &entry, `
		SELECT * FROM rate_limits WHERE caller_id = $1 AND kind = $2
	`, callerID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ratelimit repository: get %w", err)
	}
	return &entry, nil
}

// Upsert сохраняет состояние счётчика.
func (r *RateLimitRepository) Upsert(ctx context.Context, entry *models.RateLimit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limits (caller_id, kind, current_calls, window_start)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (caller_id, kind) DO UPDATE SET current_calls = $3, window_start = $4
	`, entry.CallerID, entry.Kind, entry.CurrentCalls, entry.WindowStart)
	if err != nil {
		return fmt.Errorf("ratelimit repository: upsert %w", err)
	}
	return nil
}

// Reset обнуляет счётчик и перезапускает окно с указанного момента.
func (r *RateLimitRepository) Reset(ctx context.Context, callerID uuid.UUID, kind string, windowStart time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limits (caller_id, kind, current_calls, window_start)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (caller_id, kind) DO UPDATE SET current_calls = 0, window_start = $3
	`, callerID, kind, windowStart)
	if err != nil {
		return fmt.Errorf("ratelimit repository: reset %w", err)
	}
	return nil
}

// GetBypass возвращает флаг обхода лимитов для пользователя.
func (r *RateLimitRepository) GetBypass(ctx context.Context, callerID uuid.UUID) (bool, error) {
	var enabled bool
	err := r.db.GetContext(ctx, &enabled, `
		SELECT enabled FROM rate_limit_bypass WHERE caller_id = $1
	`, callerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ratelimit repository: get bypass %w", err)
	}
	return enabled, nil
}

// SetBypass выставляет флаг обхода лимитов.
func (r *RateLimitRepository) SetBypass(ctx context.Context, callerID uuid.UUID, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_limit_bypass (caller_id, enabled)
		VALUES ($1, $2)
		ON CONFLICT (caller_id) DO UPDATE SET enabled = $2, updated_at = NOW()
	`, callerID, enabled)
	if err != nil {
		return fmt.Errorf("ratelimit repository: set bypass %w", err)
	}
	return nil
}
