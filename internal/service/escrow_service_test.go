package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) Create(ctx context.Context, jobID, payerID, payeeID uuid.UUID, amount int64) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, payerID, payeeID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Fund(ctx context.Context, jobID, payerID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Release(ctx context.Context, jobID uuid.UUID, fee *models.FeeBreakdown) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, fee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) MarkDisputed(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Settle(ctx context.Context, jobID uuid.UUID, outcome string, payerFee, payeeFee *models.FeeBreakdown) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, outcome, payerFee, payeeFee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

type mockFeeEngine struct {
	mock.Mock
}

func (m *mockFeeEngine) Calculate(ctx context.Context, amount int64, callerID uuid.UUID, kind string) (*models.FeeBreakdown, error) {
	args := m.Called(ctx, amount, callerID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeeBreakdown), args.Error(1)
}

func (m *mockFeeEngine) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockCallLimiter struct {
	mock.Mock
}

func (m *mockCallLimiter) Check(ctx context.Context, callerID uuid.UUID, kind string, maxCalls int64, window time.Duration) error {
	args := m.Called(ctx, callerID, kind, maxCalls, window)
	return args.Error(0)
}

type mockArbiterSource struct {
	mock.Mock
}

func (m *mockArbiterSource) Arbitrator(ctx context.Context) (uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type escrowFixture struct {
	repo    *mockEscrowRepo
	fees    *mockFeeEngine
	limiter *mockCallLimiter
	arbiter *mockArbiterSource
	svc     *EscrowService
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		repo:    new(mockEscrowRepo),
		fees:    new(mockFeeEngine),
		limiter: new(mockCallLimiter),
		arbiter: new(mockArbiterSource),
	}
	f.svc = NewEscrowService(f.repo, f.fees, f.limiter, f.arbiter, 10, time.Minute)
	return f
}

func TestEscrowService_Init_InvalidAmount(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	_, err := f.svc.Init(ctx, uuid.New(), uuid.New(), uuid.New(), 0)
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)

	_, err = f.svc.Init(ctx, uuid.New(), uuid.New(), uuid.New(), -500)
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Deposit_Unauthorized(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	stranger := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Amount:  1000,
		Status:  models.EscrowStatusInitialized,
	}, nil)

	_, err := f.svc.Deposit(ctx, jobID, stranger)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	f.limiter.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Deposit_Success(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payer := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: payer,
		PayeeID: uuid.New(),
		Amount:  1000,
		Status:  models.EscrowStatusInitialized,
	}, nil)
	f.limiter.On("Check", ctx, payer, models.OpKindDeposit, int64(10), time.Minute).Return(nil)
	f.repo.On("Fund", ctx, jobID, payer).Return(&models.Escrow{
		JobID:  jobID,
		Status: models.EscrowStatusFunded,
	}, nil)

	escrow, err := f.svc.Deposit(ctx, jobID, payer)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusFunded, escrow.Status)
	f.repo.AssertExpectations(t)
}

func TestEscrowService_Deposit_RateLimited(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payer := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: payer,
		Status:  models.EscrowStatusInitialized,
	}, nil)
	f.limiter.On("Check", ctx, payer, models.OpKindDeposit, int64(10), time.Minute).
		Return(apperror.ErrRateLimitExceeded)

	_, err := f.svc.Deposit(ctx, jobID, payer)
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	f.repo.AssertNotCalled(t, "Fund", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Release_FeeConservation(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payee := uuid.New()
	escrowID := uuid.New()

	funded := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: payee,
		Amount:  1000,
		Status:  models.EscrowStatusFunded,
	}
	breakdown := &models.FeeBreakdown{
		Amount:    1000,
		FeeAmount: 25,
		NetAmount: 975,
		AppliedBP: 250,
	}
	f.repo.On("GetByJobID", ctx, jobID).Return(funded, nil)
	f.limiter.On("Check", ctx, payee, models.OpKindRelease, int64(10), time.Minute).Return(nil)
	f.fees.On("Calculate", ctx, int64(1000), payee, models.FeeKindEscrow).Return(breakdown, nil)
	released := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayeeID: payee,
		Amount:  1000,
		Status:  models.EscrowStatusReleased,
	}
	f.repo.On("Release", ctx, jobID, breakdown).Return(released, nil)

	escrow, got, err := f.svc.Release(ctx, jobID, payee)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, escrow.Status)
	// Комиссия и чистая сумма складываются ровно в сумму эскроу
	assert.Equal(t, escrow.Amount, got.FeeAmount+got.NetAmount)
	f.repo.AssertExpectations(t)
	f.fees.AssertExpectations(t)
}

// Выплата и сбор комиссии опираются на один и тот же расчёт: движок
// вызывается ровно один раз, и именно этот расчёт уходит в транзакцию
// выплаты. Изменение ставок или премиум-статуса между расчётом и
// выплатой не может развести зачисления по разным ставкам.
func TestEscrowService_Release_SingleFeeComputation(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payee := uuid.New()

	funded := &models.Escrow{
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: payee,
		Amount:  1000,
		Status:  models.EscrowStatusFunded,
	}
	breakdown := &models.FeeBreakdown{Amount: 1000, FeeAmount: 25, NetAmount: 975, AppliedBP: 250}
	f.repo.On("GetByJobID", ctx, jobID).Return(funded, nil)
	f.limiter.On("Check", ctx, payee, models.OpKindRelease, int64(10), time.Minute).Return(nil)
	f.fees.On("Calculate", ctx, int64(1000), payee, models.FeeKindEscrow).Return(breakdown, nil)
	f.repo.On("Release", ctx, jobID, mock.MatchedBy(func(fee *models.FeeBreakdown) bool {
		return fee == breakdown
	})).Return(&models.Escrow{JobID: jobID, Amount: 1000, Status: models.EscrowStatusReleased}, nil)

	_, _, err := f.svc.Release(ctx, jobID, payee)
	assert.NoError(t, err)
	f.fees.AssertNumberOfCalls(t, "Calculate", 1)
	f.repo.AssertExpectations(t)
}

func TestEscrowService_Release_OnlyPayee(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payer := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: payer,
		PayeeID: uuid.New(),
		Status:  models.EscrowStatusFunded,
	}, nil)

	_, _, err := f.svc.Release(ctx, jobID, payer)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestEscrowService_RaiseDispute_NonParticipant(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.EscrowStatusFunded,
	}, nil)

	_, err := f.svc.RaiseDispute(ctx, jobID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	f.repo.AssertNotCalled(t, "MarkDisputed", mock.Anything, mock.Anything)
}

func TestEscrowService_RaiseDispute_Payee(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	payee := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: payee,
		Status:  models.EscrowStatusFunded,
	}, nil)
	f.limiter.On("Check", ctx, payee, models.OpKindDispute, int64(10), time.Minute).Return(nil)
	f.repo.On("MarkDisputed", ctx, jobID).Return(&models.Escrow{
		JobID:  jobID,
		Status: models.EscrowStatusDisputed,
	}, nil)

	escrow, err := f.svc.RaiseDispute(ctx, jobID, payee)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusDisputed, escrow.Status)
}

func TestEscrowService_Resolve_PanicsOnEmptyOutcome(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _, _ = f.svc.Resolve(ctx, uuid.New(), uuid.New(), "")
	})
	assert.Panics(t, func() {
		_, _, _ = f.svc.Resolve(ctx, uuid.New(), uuid.New(), models.DisputeOutcomeNone)
	})
}

func TestEscrowService_Resolve_InvalidOutcome(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	_, _, err := f.svc.Resolve(ctx, uuid.New(), uuid.New(), "coin_flip")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeInvalidDisputeResult))
}

func TestEscrowService_Resolve_NotArbiter(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	caller := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(&models.Escrow{
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Amount:  1000,
		Status:  models.EscrowStatusDisputed,
	}, nil)
	f.arbiter.On("Arbitrator", ctx).Return(uuid.New(), nil)
	f.fees.On("IsAdmin", ctx, caller).Return(false, nil)

	_, _, err := f.svc.Resolve(ctx, jobID, caller, models.EscrowOutcomePayeeWins)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	f.repo.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Resolve_PayeeWins(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	arbitrator := uuid.New()
	payee := uuid.New()
	escrowID := uuid.New()

	disputed := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: uuid.New(),
		PayeeID: payee,
		Amount:  1000,
		Status:  models.EscrowStatusDisputed,
	}
	payeeBD := &models.FeeBreakdown{
		Amount:    1000,
		FeeAmount: 50,
		NetAmount: 950,
		AppliedBP: 500,
	}
	f.repo.On("GetByJobID", ctx, jobID).Return(disputed, nil)
	f.arbiter.On("Arbitrator", ctx).Return(arbitrator, nil)
	f.fees.On("Calculate", ctx, int64(1000), payee, models.FeeKindDispute).Return(payeeBD, nil)
	resolved := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: disputed.PayerID,
		PayeeID: payee,
		Amount:  1000,
		Status:  models.EscrowStatusResolved,
	}
	f.repo.On("Settle", ctx, jobID, models.EscrowOutcomePayeeWins, (*models.FeeBreakdown)(nil), payeeBD).Return(resolved, nil)

	escrow, settlement, err := f.svc.Resolve(ctx, jobID, arbitrator, models.EscrowOutcomePayeeWins)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusResolved, escrow.Status)
	assert.Equal(t, int64(0), settlement.PayerNet)
	assert.Equal(t, int64(950), settlement.PayeeNet)
	assert.Equal(t, int64(50), settlement.FeesCollected)
	f.repo.AssertExpectations(t)
	f.fees.AssertExpectations(t)
}

func TestEscrowService_Resolve_SplitSharesSumToAmount(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	arbitrator := uuid.New()
	payer := uuid.New()
	payee := uuid.New()
	escrowID := uuid.New()

	// Нечётная сумма: 1001 -> 500 плательщику, 501 получателю
	disputed := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: payer,
		PayeeID: payee,
		Amount:  1001,
		Status:  models.EscrowStatusDisputed,
	}
	payerBD := &models.FeeBreakdown{
		Amount:    500,
		FeeAmount: 25,
		NetAmount: 475,
		AppliedBP: 500,
	}
	payeeBD := &models.FeeBreakdown{
		Amount:    501,
		FeeAmount: 25,
		NetAmount: 476,
		AppliedBP: 500,
	}
	f.repo.On("GetByJobID", ctx, jobID).Return(disputed, nil)
	f.arbiter.On("Arbitrator", ctx).Return(arbitrator, nil)
	f.fees.On("Calculate", ctx, int64(500), payer, models.FeeKindDispute).Return(payerBD, nil)
	f.fees.On("Calculate", ctx, int64(501), payee, models.FeeKindDispute).Return(payeeBD, nil)
	resolved := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: payer,
		PayeeID: payee,
		Amount:  1001,
		Status:  models.EscrowStatusResolved,
	}
	f.repo.On("Settle", ctx, jobID, models.EscrowOutcomeSplit, payerBD, payeeBD).Return(resolved, nil)

	_, settlement, err := f.svc.Resolve(ctx, jobID, arbitrator, models.EscrowOutcomeSplit)
	assert.NoError(t, err)
	// Выплаты плюс комиссии в сумме дают исходную сумму эскроу
	assert.Equal(t, disputed.Amount, settlement.PayerNet+settlement.PayeeNet+settlement.FeesCollected)
	f.fees.AssertExpectations(t)
}

func TestEscrowService_Resolve_AdminFallback(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()
	admin := uuid.New()
	payer := uuid.New()
	escrowID := uuid.New()

	disputed := &models.Escrow{
		ID:      escrowID,
		JobID:   jobID,
		PayerID: payer,
		PayeeID: uuid.New(),
		Amount:  400,
		Status:  models.EscrowStatusDisputed,
	}
	payerBD := &models.FeeBreakdown{
		Amount:    400,
		FeeAmount: 20,
		NetAmount: 380,
		AppliedBP: 500,
	}
	f.repo.On("GetByJobID", ctx, jobID).Return(disputed, nil)
	f.arbiter.On("Arbitrator", ctx).Return(uuid.UUID{}, apperror.ErrConfigNotInitialized)
	f.fees.On("IsAdmin", ctx, admin).Return(true, nil)
	f.fees.On("Calculate", ctx, int64(400), payer, models.FeeKindDispute).Return(payerBD, nil)
	resolved := &models.Escrow{ID: escrowID, JobID: jobID, PayerID: payer, Amount: 400, Status: models.EscrowStatusResolved}
	f.repo.On("Settle", ctx, jobID, models.EscrowOutcomePayerWins, payerBD, (*models.FeeBreakdown)(nil)).Return(resolved, nil)

	_, settlement, err := f.svc.Resolve(ctx, jobID, admin, models.EscrowOutcomePayerWins)
	assert.NoError(t, err)
	assert.Equal(t, int64(380), settlement.PayerNet)
}

// Чтение отсутствующего эскроу — not found; "не инициализирован"
// остаётся за изменяющими вызовами.
func TestEscrowService_GetState_NotFound(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	jobID := uuid.New()

	f.repo.On("GetByJobID", ctx, jobID).Return(nil, apperror.ErrEscrowNotInitialized)

	_, err := f.svc.GetState(ctx, jobID)
	assert.ErrorIs(t, err, apperror.ErrEscrowNotFound)

	_, depositErr := f.svc.Deposit(ctx, jobID, uuid.New())
	assert.ErrorIs(t, depositErr, apperror.ErrEscrowNotInitialized)
}
