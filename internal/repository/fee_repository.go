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

type FeeRepository struct {
	db *sqlx.DB
}

func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// InitConfig создаёт единственную строку конфигурации комиссий.
func (r *FeeRepository) InitConfig(ctx context.Context, adminID, platformWalletID uuid.UUID, escrowBP, disputeBP, arbitratorBP int64) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fee_config (singleton, admin_id, platform_wallet_id, escrow_fee_bp, dispute_fee_bp, arbitrator_fee_bp)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) DO NOTHING
	`, adminID, platformWalletID, escrowBP, disputeBP, arbitratorBP)
	if err != nil {
		return fmt.Errorf("fee repository: init config %w", err)
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

// GetConfig возвращает конфигурацию комиссий.
func (r *FeeRepository) GetConfig(ctx context.Context) (*models.FeeConfig, error) {
	var cfg models.FeeConfig
	query := `
		SELECT escrow_fee_bp, dispute_fee_bp, arbitrator_fee_bp, admin_id, platform_wallet_id, created_at, updated_at
		FROM fee_config WHERE singleton = TRUE
	`
	err := r.db.GetContext(ctx, &cfg, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrConfigNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("fee repository: get config %w", err)
	}
	return &cfg, nil
}

// UpdateRates обновляет ставки комиссий.
func (r *FeeRepository) UpdateRates(ctx context.Context, escrowBP, disputeBP, arbitratorBP int64) (*models.FeeConfig, error) {
	var cfg models.FeeConfig
	err := r.db.GetContext(ctx, &cfg, `
		UPDATE fee_config SET escrow_fee_bp = $1, dispute_fee_bp = $2, arbitrator_fee_bp = $3, updated_at = NOW()
		WHERE singleton = TRUE
		RETURNING escrow_fee_bp, dispute_fee_bp, arbitrator_fee_bp, admin_id, platform_wallet_id, created_at, updated_at
	`, escrowBP, disputeBP, arbitratorBP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrConfigNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("fee repository: update rates %w", err)
	}
	return &cfg, nil
}

// AddPremiumUser добавляет пользователя в премиум-множество.
func (r *FeeRepository) AddPremiumUser(ctx context.Context, userID, addedBy uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO premium_users (user_id, added_by) VALUES ($1, $2)
	`, userID, addedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrPremiumAlreadyExists
		}
		return fmt.Errorf("fee repository: add premium %w", err)
	}
	return nil
}

// RemovePremiumUser убирает пользователя из премиум-множества.
func (r *FeeRepository) RemovePremiumUser(ctx context.Context, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM premium_users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("fee repository: remove premium %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.ErrPremiumNotFound
	}
	return nil
}

// IsPremiumUser проверяет членство в премиум-множестве.
func (r *FeeRepository) IsPremiumUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM premium_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("fee repository: is premium %w", err)
	}
	return count > 0, nil
}

// RecordCollection атомарно пишет запись в журнал комиссий, обновляет
// статистику и зачисляет комиссию на платформенный баланс.
func (r *FeeRepository) RecordCollection(ctx context.Context, rec *models.FeeRecord, premiumExempted int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyFeeTx(ctx, tx, rec, premiumExempted); err != nil {
		return err
	}

	return tx.Commit()
}

// applyFeeTx выполняет сбор комиссии внутри уже открытой транзакции:
// запись в журнал, обновление статистики, зачисление на платформенный
// баланс. Транзакции выплат эскроу используют его напрямую, чтобы
// комиссия и выплата фиксировались одним коммитом.
func applyFeeTx(ctx context.Context, tx *sqlx.Tx, rec *models.FeeRecord, premiumExempted int64) error {
	err := tx.GetContext(ctx, rec, `
		INSERT INTO fee_records (kind, amount, payer_id, escrow_id)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, rec.Kind, rec.Amount, rec.PayerID, rec.EscrowID)
	if err != nil {
		return fmt.Errorf("fee repository: record %w", err)
	}

	kindColumn := "escrow_fees"
	switch rec.Kind {
	case models.FeeKindDispute:
		kindColumn = "dispute_fees"
	case models.FeeKindArbitrator:
		kindColumn = "arbitrator_fees"
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE fee_stats SET
			total_collected = total_collected + $1,
			%s = %s + $1,
			tx_count = tx_count + 1,
			premium_exempted = premium_exempted + $2,
			updated_at = NOW()
		WHERE singleton = TRUE
	`, kindColumn, kindColumn), rec.Amount, premiumExempted)
	if err != nil {
		return fmt.Errorf("fee repository: update stats %w", err)
	}

	if rec.Amount > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE platform_balance SET balance = balance + $1, updated_at = NOW() WHERE singleton = TRUE
		`, rec.Amount)
		if err != nil {
			return fmt.Errorf("fee repository: credit platform %w", err)
		}
	}

	return nil
}

// PlatformBalance возвращает накопленный платформенный баланс.
func (r *FeeRepository) PlatformBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM platform_balance WHERE singleton = TRUE`)
	if err != nil {
		return 0, fmt.Errorf("fee repository: platform balance %w", err)
	}
	return balance, nil
}

// WithdrawPlatform списывает сумму с платформенного баланса.
// Отклоняет списание сверх накопленного остатка.
func (r *FeeRepository) WithdrawPlatform(ctx context.Context, amount int64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance, `SELECT balance FROM platform_balance WHERE singleton = TRUE FOR UPDATE`)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, apperror.ErrInsufficientBalance
	}

	err = tx.GetContext(ctx, &balance, `
		UPDATE platform_balance SET balance = balance - $1, updated_at = NOW()
		WHERE singleton = TRUE
		RETURNING balance
	`, amount)
	if err != nil {
		return 0, err
	}

	return balance, tx.Commit()
}

// ListRecords возвращает журнал комиссий, новые записи первыми.
func (r *FeeRepository) ListRecords(ctx context.Context, limit, offset int) ([]models.FeeRecord, error) {
	var records []models.FeeRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM fee_records ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return records, err
}

// GetStats возвращает накопительную статистику.
func (r *FeeRepository) GetStats(ctx context.Context) (*models.FeeStats, error) {
	var stats models.FeeStats
	query := `
		SELECT total_collected, escrow_fees, dispute_fees, arbitrator_fees, tx_count, premium_exempted, updated_at
		FROM fee_stats WHERE singleton = TRUE
	`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("fee repository: get stats %w", err)
	}
	return &stats, nil
}
