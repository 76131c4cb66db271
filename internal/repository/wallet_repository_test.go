package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Чтение баланса ничего не пишет: отсутствие строки — нулевой баланс.
func TestWalletRepository_GetBalance_MissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT user_id, available, frozen, updated_at`).
		WillReturnError(sql.ErrNoRows)

	balance, err := repo.GetBalance(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, balance.UserID)
	assert.Equal(t, int64(0), balance.Available)
	assert.Equal(t, int64(0), balance.Frozen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_GetBalance_Existing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT user_id, available, frozen, updated_at`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "frozen", "updated_at"}).
			AddRow(userID.String(), int64(1500), int64(200), time.Now()))

	balance, err := repo.GetBalance(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Available)
	assert.Equal(t, int64(200), balance.Frozen)
}

func TestWalletRepository_TopUp_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO user_balances`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "job_id", "type", "amount", "description", "created_at"}).
			AddRow(uuid.New().String(), userID.String(), nil, "topup", int64(5000), "Пополнение баланса", time.Now()))
	mock.ExpectCommit()

	tx, err := repo.TopUp(context.Background(), userID, 5000)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), tx.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
