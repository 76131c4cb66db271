package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

var disputeColumns = []string{
	"id", "job_id", "initiator_id", "reason", "resolved", "outcome", "created_at", "resolved_at",
}

func disputeRow(jobID, initiatorID uuid.UUID, resolved bool, outcome string) *sqlmock.Rows {
	return sqlmock.NewRows(disputeColumns).AddRow(
		uuid.New().String(), jobID.String(), initiatorID.String(), "работа не сдана",
		resolved, outcome, time.Now(), nil,
	)
}

func TestDisputeRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDisputeRepository(db)

	mock.ExpectQuery(`INSERT INTO dispute_cases`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), uuid.New(), uuid.New(), "работа не сдана")
	assert.ErrorIs(t, err, apperror.ErrDisputeAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisputeRepository_GetByJobID_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDisputeRepository(db)

	mock.ExpectQuery(`SELECT \* FROM dispute_cases WHERE job_id = \$1`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByJobID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrDisputeNotFound)
}

// Повторное разрешение невозможно: строка проверяется под FOR UPDATE.
func TestDisputeRepository_Resolve_AlreadyResolved(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDisputeRepository(db)
	jobID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM dispute_cases WHERE job_id = \$1 FOR UPDATE`).
		WillReturnRows(disputeRow(jobID, uuid.New(), true, models.DisputeOutcomeFavorPayer))
	mock.ExpectRollback()

	_, err := repo.Resolve(context.Background(), jobID, models.DisputeOutcomeFavorPayee)
	assert.ErrorIs(t, err, apperror.ErrDisputeAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisputeRepository_Resolve_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDisputeRepository(db)
	jobID, initiator := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM dispute_cases WHERE job_id = \$1 FOR UPDATE`).
		WillReturnRows(disputeRow(jobID, initiator, false, models.DisputeOutcomeNone))
	mock.ExpectQuery(`UPDATE dispute_cases SET resolved = TRUE`).
		WillReturnRows(disputeRow(jobID, initiator, true, models.DisputeOutcomeFavorPayee))
	mock.ExpectCommit()

	d, err := repo.Resolve(context.Background(), jobID, models.DisputeOutcomeFavorPayee)
	assert.NoError(t, err)
	assert.True(t, d.Resolved)
	assert.Equal(t, models.DisputeOutcomeFavorPayee, d.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
