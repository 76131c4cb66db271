package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type EscrowRepository interface {
	Create(ctx context.Context, jobID, payerID, payeeID uuid.UUID, amount int64) (*models.Escrow, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error)
	Fund(ctx context.Context, jobID, payerID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, jobID uuid.UUID, fee *models.FeeBreakdown) (*models.Escrow, error)
	MarkDisputed(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error)
	Settle(ctx context.Context, jobID uuid.UUID, outcome string, payerFee, payeeFee *models.FeeBreakdown) (*models.Escrow, error)
}

// FeeEngine — часть движка комиссий, нужная эскроу при расчётах.
// Сбор рассчитанной комиссии выполняет репозиторий эскроу в транзакции
// выплаты, поэтому движок здесь только считает.
type FeeEngine interface {
	Calculate(ctx context.Context, amount int64, callerID uuid.UUID, kind string) (*models.FeeBreakdown, error)
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// CallLimiter ограничивает частоту изменяющих вызовов.
type CallLimiter interface {
	Check(ctx context.Context, callerID uuid.UUID, kind string, maxCalls int64, window time.Duration) error
}

// ArbiterSource сообщает назначенного арбитра.
type ArbiterSource interface {
	Arbitrator(ctx context.Context) (uuid.UUID, error)
}

// EscrowService — машина состояний кастодиального счёта:
// initialized -> funded -> released, либо funded -> disputed -> resolved.
// Авторизация проверяется до любого изменения состояния; сами переходы
// атомарны на уровне репозитория, поэтому каждый срабатывает не более
// одного раза и повторный вызов отклоняется, а не игнорируется.
type EscrowService struct {
	repo    EscrowRepository
	fees    FeeEngine
	limiter CallLimiter
	arbiter ArbiterSource

	limitMax    int64
	limitWindow time.Duration
}

func NewEscrowService(repo EscrowRepository, fees FeeEngine, limiter CallLimiter, arbiter ArbiterSource, limitMax int64, limitWindow time.Duration) *EscrowService {
	return &EscrowService{
		repo:        repo,
		fees:        fees,
		limiter:     limiter,
		arbiter:     arbiter,
		limitMax:    limitMax,
		limitWindow: limitWindow,
	}
}

// Init создаёт эскроу по работе.
func (s *EscrowService) Init(ctx context.Context, jobID, payerID, payeeID uuid.UUID, amount int64) (*models.Escrow, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount
	}
	escrow, err := s.repo.Create(ctx, jobID, payerID, payeeID, amount)
	if err != nil {
		return nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"job":    jobID,
			"amount": amount,
		}).Info("escrow: initialized")
	}
	return escrow, nil
}

// Deposit замораживает сумму эскроу (initialized -> funded).
// Доступно только плательщику.
func (s *EscrowService) Deposit(ctx context.Context, jobID, callerID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != callerID {
		return nil, apperror.ErrUnauthorized
	}
	if err := s.limiter.Check(ctx, callerID, models.OpKindDeposit, s.limitMax, s.limitWindow); err != nil {
		return nil, err
	}
	return s.repo.Fund(ctx, jobID, callerID)
}

// Release выплачивает получателю сумму за вычетом комиссии платформы
// (funded -> released). Комиссия считается один раз, и тот же расчёт
// уходит в транзакцию выплаты, поэтому комиссия и чистая сумма в
// точности складываются в исходную сумму эскроу.
func (s *EscrowService) Release(ctx context.Context, jobID, callerID uuid.UUID) (*models.Escrow, *models.FeeBreakdown, error) {
	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if escrow.PayeeID != callerID {
		return nil, nil, apperror.ErrUnauthorized
	}
	if err := s.limiter.Check(ctx, callerID, models.OpKindRelease, s.limitMax, s.limitWindow); err != nil {
		return nil, nil, err
	}

	breakdown, err := s.fees.Calculate(ctx, escrow.Amount, escrow.PayeeID, models.FeeKindEscrow)
	if err != nil {
		return nil, nil, err
	}

	escrow, err = s.repo.Release(ctx, jobID, breakdown)
	if err != nil {
		return nil, nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"job": jobID,
			"net": breakdown.NetAmount,
			"fee": breakdown.FeeAmount,
		}).Info("escrow: released")
	}
	return escrow, breakdown, nil
}

// RaiseDispute переводит профинансированный эскроу в спор
// (funded -> disputed). Доступно обеим сторонам сделки.
func (s *EscrowService) RaiseDispute(ctx context.Context, jobID, callerID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if escrow.PayerID != callerID && escrow.PayeeID != callerID {
		return nil, apperror.ErrUnauthorized
	}
	if err := s.limiter.Check(ctx, callerID, models.OpKindDispute, s.limitMax, s.limitWindow); err != nil {
		return nil, err
	}
	return s.repo.MarkDisputed(ctx, jobID)
}

// Resolve закрывает спор решением арбитра или администратора
// (disputed -> resolved) и распределяет средства за вычетом комиссий.
// Пустое решение — ошибка интеграции и завершает процесс паникой.
func (s *EscrowService) Resolve(ctx context.Context, jobID, callerID uuid.UUID, outcome string) (*models.Escrow, *models.Settlement, error) {
	if outcome == "" || outcome == models.DisputeOutcomeNone {
		panic("escrow service: resolve called with empty outcome")
	}
	if outcome != models.EscrowOutcomePayerWins && outcome != models.EscrowOutcomePayeeWins && outcome != models.EscrowOutcomeSplit {
		return nil, nil, apperror.New(apperror.ErrCodeInvalidDisputeResult, "неизвестный исход спора: "+outcome)
	}

	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.requireArbiter(ctx, callerID); err != nil {
		return nil, nil, err
	}

	// Делим сумму по исходу: победителю всё, при split — пополам,
	// остаток от деления уходит получателю.
	var payerShare, payeeShare int64
	switch outcome {
	case models.EscrowOutcomePayerWins:
		payerShare = escrow.Amount
	case models.EscrowOutcomePayeeWins:
		payeeShare = escrow.Amount
	case models.EscrowOutcomeSplit:
		payerShare = escrow.Amount / 2
		payeeShare = escrow.Amount - payerShare
	}

	// Каждая доля считается ровно один раз; те же расчёты уходят в
	// транзакцию распределения вместе со сбором комиссий.
	var payerNet, payeeNet, fees int64
	var payerBD, payeeBD *models.FeeBreakdown
	if payerShare > 0 {
		payerBD, err = s.fees.Calculate(ctx, payerShare, escrow.PayerID, models.FeeKindDispute)
		if err != nil {
			return nil, nil, err
		}
		payerNet = payerBD.NetAmount
		fees += payerBD.FeeAmount
	}
	if payeeShare > 0 {
		payeeBD, err = s.fees.Calculate(ctx, payeeShare, escrow.PayeeID, models.FeeKindDispute)
		if err != nil {
			return nil, nil, err
		}
		payeeNet = payeeBD.NetAmount
		fees += payeeBD.FeeAmount
	}

	escrow, err = s.repo.Settle(ctx, jobID, outcome, payerBD, payeeBD)
	if err != nil {
		return nil, nil, err
	}

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"job":     jobID,
			"outcome": outcome,
			"fees":    fees,
		}).Info("escrow: dispute resolved")
	}

	return escrow, &models.Settlement{PayerNet: payerNet, PayeeNet: payeeNet, FeesCollected: fees}, nil
}

// GetState возвращает полное состояние эскроу. Отсутствующий эскроу на
// пути чтения — not found, а не "не инициализирован": последний отвечает
// за изменяющие вызовы.
func (s *EscrowService) GetState(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, apperror.ErrEscrowNotInitialized) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return escrow, nil
}

// requireArbiter пропускает назначенного арбитра или администратора.
func (s *EscrowService) requireArbiter(ctx context.Context, callerID uuid.UUID) error {
	arbitrator, err := s.arbiter.Arbitrator(ctx)
	if err == nil && arbitrator == callerID {
		return nil
	}

	admin, adminErr := s.fees.IsAdmin(ctx, callerID)
	if adminErr != nil {
		return adminErr
	}
	if admin {
		return nil
	}
	if err != nil {
		// Реестр арбитража не инициализирован и вызывающий не админ.
		return err
	}
	return apperror.ErrUnauthorized
}
