package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// InitConfig сохраняет назначенного арбитра. Повторная инициализация
// отклоняется: конфигурация выставляется ровно один раз.
func (r *DisputeRepository) InitConfig(ctx context.Context, arbitratorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO arbitration_config (singleton, arbitrator_id)
		VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO NOTHING
	`, arbitratorID)
	if err != nil {
		return fmt.Errorf("dispute repository: init config %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.ErrConfigAlreadyExists
	}
	return nil
}

// GetConfig возвращает конфигурацию арбитража.
func (r *DisputeRepository) GetConfig(ctx context.Context) (*models.ArbitrationConfig, error) {
	var cfg models.ArbitrationConfig
	err := r.db.GetContext(ctx, &cfg, `SELECT arbitrator_id, created_at FROM arbitration_config WHERE singleton = TRUE`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrConfigNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get config %w", err)
	}
	return &cfg, nil
}

// Create открывает спор по работе. Второй спор по той же работе
// отклоняется по уникальному ключу job_id.
func (r *DisputeRepository) Create(ctx context.Context, jobID, initiatorID uuid.UUID, reason string) (*models.DisputeCase, error) {
	var d models.DisputeCase
	query := `
		INSERT INTO dispute_cases (job_id, initiator_id, reason, resolved, outcome)
		VALUES ($1, $2, $3, FALSE, 'none')
		RETURNING *
	`
	err := r.db.GetContext(ctx, &d, query, jobID, initiatorID, reason)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.ErrDisputeAlreadyExists
		}
		return nil, fmt.Errorf("dispute repository: create %w", err)
	}
	return &d, nil
}

// GetByJobID возвращает спор по работе.
func (r *DisputeRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.DisputeCase, error) {
	var d models.DisputeCase
	err := r.db.GetContext(ctx, &d, `SELECT * FROM dispute_cases WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get by job %w", err)
	}
	return &d, nil
}

// Resolve фиксирует решение арбитра. Проверка "ещё не разрешён"
// выполняется под FOR UPDATE, чтобы повторное разрешение было невозможно.
func (r *DisputeRepository) Resolve(ctx context.Context, jobID uuid.UUID, outcome string) (*models.DisputeCase, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var d models.DisputeCase
	err = tx.GetContext(ctx, &d, `SELECT * FROM dispute_cases WHERE job_id = $1 FOR UPDATE`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return nil, apperror.ErrDisputeAlreadyResolved
	}

	err = tx.GetContext(ctx, &d, `
		UPDATE dispute_cases SET resolved = TRUE, outcome = $2, resolved_at = NOW()
		WHERE job_id = $1
		RETURNING *
	`, jobID, outcome)
	if err != nil {
		return nil, err
	}

	return &d, tx.Commit()
}

// ListByUser возвращает споры, открытые пользователем.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DisputeCase, error) {
	var disputes []models.DisputeCase
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM dispute_cases
		WHERE initiator_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}
