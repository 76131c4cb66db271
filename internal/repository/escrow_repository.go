package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create создаёт эскроу по работе. Повторная инициализация той же работы
// отклоняется по уникальному ключу job_id.
func (r *EscrowRepository) Create(ctx context.Context, jobID, payerID, payeeID uuid.UUID, amount int64) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		INSERT INTO escrows (job_id, payer_id, payee_id, amount, status)
		VALUES ($1, $2, $3, $4, 'initialized')
		RETURNING *
	`
	err := r.db.GetContext(ctx, &escrow, query, jobID, payerID, payeeID, amount)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.ErrEscrowAlreadyExists
		}
		return nil, fmt.Errorf("escrow repository: create %w", err)
	}
	return &escrow, nil
}

// GetByJobID возвращает эскроу по работе.
func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrEscrowNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: get by job %w", err)
	}
	return &escrow, nil
}

// Fund замораживает сумму эскроу на балансе плательщика и переводит
// статус в funded. Проверка статуса и движение денег выполняются в одной
// транзакции под FOR UPDATE.
func (r *EscrowRepository) Fund(ctx context.Context, jobID, payerID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := lockEscrow(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusInitialized {
		return nil, apperror.ErrInvalidStatus
	}

	// Проверяем баланс плательщика
	var balance models.UserBalance
	err = tx.GetContext(ctx, &balance, `SELECT * FROM user_balances WHERE user_id = $1 FOR UPDATE`, payerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, err
	}
	if balance.Available < escrow.Amount {
		return nil, apperror.ErrInsufficientFunds
	}

	// Замораживаем средства
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE user_id = $1
	`, payerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, escrow, `
		UPDATE escrows SET status = 'funded', funded_at = NOW() WHERE job_id = $1
		RETURNING *
	`, jobID)
	if err != nil {
		return nil, err
	}

	if err := insertTransaction(ctx, tx, payerID, &jobID, models.TransactionTypeEscrowHold, escrow.Amount, "Заморозка средств по эскроу"); err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// Release выплачивает получателю чистую сумму, снимает заморозку у
// плательщика, зачисляет комиссию платформе и переводит эскроу в
// released. Выплата и сбор комиссии фиксируются одним коммитом, поэтому
// комиссия и чистая сумма всегда складываются в сумму эскроу.
func (r *EscrowRepository) Release(ctx context.Context, jobID uuid.UUID, fee *models.FeeBreakdown) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := lockEscrow(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusFunded {
		return nil, apperror.ErrInvalidStatus
	}

	// Снимаем заморозку у плательщика
	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.PayerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	// Зачисляем получателю сумму за вычетом комиссии
	if err := creditBalance(ctx, tx, escrow.PayeeID, fee.NetAmount); err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, escrow, `
		UPDATE escrows SET status = 'released', released_at = NOW() WHERE job_id = $1
		RETURNING *
	`, jobID)
	if err != nil {
		return nil, err
	}

	if err := insertTransaction(ctx, tx, escrow.PayeeID, &jobID, models.TransactionTypeEscrowRelease, fee.NetAmount, "Выплата по эскроу"); err != nil {
		return nil, err
	}

	rec := &models.FeeRecord{
		Kind:     models.FeeKindEscrow,
		Amount:   fee.FeeAmount,
		PayerID:  escrow.PayeeID,
		EscrowID: &escrow.ID,
	}
	if err := applyFeeTx(ctx, tx, rec, fee.Exempted); err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// MarkDisputed переводит профинансированный эскроу в disputed.
func (r *EscrowRepository) MarkDisputed(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := lockEscrow(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusFunded {
		return nil, apperror.ErrInvalidStatus
	}

	err = tx.GetContext(ctx, escrow, `
		UPDATE escrows SET status = 'disputed', disputed_at = NOW() WHERE job_id = $1
		RETURNING *
	`, jobID)
	if err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// Settle выполняет итоговое распределение средств по решению арбитра:
// снимает заморозку у плательщика, зачисляет обеим сторонам их доли за
// вычетом комиссий и собирает комиссии платформе. Всё — одним коммитом;
// nil вместо расчёта означает нулевую долю стороны.
func (r *EscrowRepository) Settle(ctx context.Context, jobID uuid.UUID, outcome string, payerFee, payeeFee *models.FeeBreakdown) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := lockEscrow(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != models.EscrowStatusDisputed {
		return nil, apperror.ErrDisputeNotOpen
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.PayerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	if payerFee != nil {
		if err := settleShare(ctx, tx, escrow, escrow.PayerID, payerFee, models.TransactionTypeEscrowRefund, "Возврат по решению арбитра"); err != nil {
			return nil, err
		}
	}
	if payeeFee != nil {
		if err := settleShare(ctx, tx, escrow, escrow.PayeeID, payeeFee, models.TransactionTypeEscrowRelease, "Выплата по решению арбитра"); err != nil {
			return nil, err
		}
	}

	err = tx.GetContext(ctx, escrow, `
		UPDATE escrows SET status = 'resolved', dispute_outcome = $2, resolved_at = NOW()
		WHERE job_id = $1
		RETURNING *
	`, jobID, outcome)
	if err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// settleShare зачисляет стороне её чистую долю и собирает комиссию с доли
// в той же транзакции.
func settleShare(ctx context.Context, tx *sqlx.Tx, escrow *models.Escrow, userID uuid.UUID, fee *models.FeeBreakdown, txType, description string) error {
	if err := creditBalance(ctx, tx, userID, fee.NetAmount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, userID, &escrow.JobID, txType, fee.NetAmount, description); err != nil {
		return err
	}
	rec := &models.FeeRecord{
		Kind:     models.FeeKindDispute,
		Amount:   fee.FeeAmount,
		PayerID:  userID,
		EscrowID: &escrow.ID,
	}
	return applyFeeTx(ctx, tx, rec, fee.Exempted)
}

// lockEscrow читает строку эскроу под FOR UPDATE.
func lockEscrow(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE job_id = $1 FOR UPDATE`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrEscrowNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// creditBalance зачисляет сумму на доступный баланс, создавая строку при отсутствии.
func creditBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, userID, amount)
	return err
}

// insertTransaction пишет запись в журнал движений средств.
func insertTransaction(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, jobID *uuid.UUID, txType string, amount int64, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, job_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, jobID, txType, amount, description)
	return err
}

// isUniqueViolation определяет нарушение уникального ключа Postgres (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
