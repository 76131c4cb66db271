package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/escrow-backend/internal/models"
)

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBalance возвращает баланс пользователя. Отсутствие строки — нулевой
// баланс; чтение ничего не пишет.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		SELECT user_id, available, frozen, updated_at
		FROM user_balances WHERE user_id = $1
	`
	err := r.db.GetContext(ctx, &balance, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository: get balance %w", err)
	}
	return &balance, nil
}

// TopUp пополняет доступный баланс и пишет запись в журнал.
func (r *WalletRepository) TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: topup update balance %w", err)
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (user_id, type, amount, description)
		VALUES ($1, 'topup', $2, $3)
		RETURNING *
	`, userID, amount, "Пополнение баланса")
	if err != nil {
		return nil, fmt.Errorf("wallet repository: topup create transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// ListTransactions возвращает историю движений средств пользователя.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}
