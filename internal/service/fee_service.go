package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type FeeRepository interface {
	InitConfig(ctx context.Context, adminID, platformWalletID uuid.UUID, escrowBP, disputeBP, arbitratorBP int64) error
	GetConfig(ctx context.Context) (*models.FeeConfig, error)
	UpdateRates(ctx context.Context, escrowBP, disputeBP, arbitratorBP int64) (*models.FeeConfig, error)
	AddPremiumUser(ctx context.Context, userID, addedBy uuid.UUID) error
	RemovePremiumUser(ctx context.Context, userID uuid.UUID) error
	IsPremiumUser(ctx context.Context, userID uuid.UUID) (bool, error)
	RecordCollection(ctx context.Context, rec *models.FeeRecord, premiumExempted int64) error
	PlatformBalance(ctx context.Context) (int64, error)
	WithdrawPlatform(ctx context.Context, amount int64) (int64, error)
	ListRecords(ctx context.Context, limit, offset int) ([]models.FeeRecord, error)
	GetStats(ctx context.Context) (*models.FeeStats, error)
}

// FeeService считает и собирает комиссии платформы.
// Расчёт чистый: никакого состояния он не меняет, вся арифметика
// целочисленная с усечением к нулю, FeeAmount + NetAmount == Amount.
type FeeService struct {
	repo FeeRepository

	defaultEscrowBP     int64
	defaultDisputeBP    int64
	defaultArbitratorBP int64
}

func NewFeeService(repo FeeRepository, defaultEscrowBP, defaultDisputeBP, defaultArbitratorBP int64) *FeeService {
	return &FeeService{
		repo:                repo,
		defaultEscrowBP:     defaultEscrowBP,
		defaultDisputeBP:    defaultDisputeBP,
		defaultArbitratorBP: defaultArbitratorBP,
	}
}

// Initialize создаёт конфигурацию комиссий с дефолтными ставками.
// Выполняется ровно один раз.
func (s *FeeService) Initialize(ctx context.Context, adminID, platformWalletID uuid.UUID) error {
	return s.repo.InitConfig(ctx, adminID, platformWalletID, s.defaultEscrowBP, s.defaultDisputeBP, s.defaultArbitratorBP)
}

// GetConfig возвращает текущую конфигурацию комиссий.
func (s *FeeService) GetConfig(ctx context.Context) (*models.FeeConfig, error) {
	return s.repo.GetConfig(ctx)
}

// SetRates обновляет ставки. Доступно только администратору.
func (s *FeeService) SetRates(ctx context.Context, callerID uuid.UUID, escrowBP, disputeBP, arbitratorBP int64) (*models.FeeConfig, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if escrowBP < 0 || escrowBP > models.MaxFeeBP ||
		disputeBP < 0 || disputeBP > models.MaxFeeBP ||
		arbitratorBP < 0 || arbitratorBP > models.MaxFeeBP {
		return nil, apperror.ErrInvalidFeePercentage
	}
	return s.repo.UpdateRates(ctx, escrowBP, disputeBP, arbitratorBP)
}

// AddPremiumUser освобождает пользователя от комиссий.
func (s *FeeService) AddPremiumUser(ctx context.Context, callerID, userID uuid.UUID) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	return s.repo.AddPremiumUser(ctx, userID, callerID)
}

// RemovePremiumUser отзывает премиум-статус.
func (s *FeeService) RemovePremiumUser(ctx context.Context, callerID, userID uuid.UUID) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	return s.repo.RemovePremiumUser(ctx, userID)
}

// Calculate считает комиссию с суммы для пользователя и вида операции.
// Для премиум-пользователей применяется ставка 0.
func (s *FeeService) Calculate(ctx context.Context, amount int64, callerID uuid.UUID, kind string) (*models.FeeBreakdown, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	premium, err := s.repo.IsPremiumUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	appliedBP := s.rateFor(cfg, kind)
	base := amount * appliedBP / models.MaxFeeBP

	fee, exempted := base, int64(0)
	if premium {
		fee, exempted = 0, base
		appliedBP = 0
	}

	return &models.FeeBreakdown{
		Amount:    amount,
		FeeAmount: fee,
		NetAmount: amount - fee,
		AppliedBP: appliedBP,
		IsPremium: premium,
		Exempted:  exempted,
	}, nil
}

// Collect считает комиссию, пишет запись в журнал, обновляет статистику
// и зачисляет собранное на платформенный баланс. Возвращает фактически
// собранную комиссию. Выплаты эскроу этим путём не идут: там запись
// комиссии выполняется внутри транзакции выплаты.
func (s *FeeService) Collect(ctx context.Context, amount int64, kind string, payerID uuid.UUID, escrowID *uuid.UUID) (int64, error) {
	breakdown, err := s.Calculate(ctx, amount, payerID, kind)
	if err != nil {
		return 0, err
	}

	rec := &models.FeeRecord{
		Kind:     kind,
		Amount:   breakdown.FeeAmount,
		PayerID:  payerID,
		EscrowID: escrowID,
	}
	if err := s.repo.RecordCollection(ctx, rec, breakdown.Exempted); err != nil {
		return 0, err
	}

	return breakdown.FeeAmount, nil
}

// Withdraw списывает собранные комиссии. Доступно только администратору.
// Возвращает остаток платформенного баланса.
func (s *FeeService) Withdraw(ctx context.Context, callerID uuid.UUID, amount int64) (int64, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, apperror.ErrInvalidAmount
	}
	return s.repo.WithdrawPlatform(ctx, amount)
}

// PlatformBalance возвращает накопленный платформенный баланс.
func (s *FeeService) PlatformBalance(ctx context.Context) (int64, error) {
	return s.repo.PlatformBalance(ctx)
}

// History возвращает журнал собранных комиссий.
func (s *FeeService) History(ctx context.Context, limit, offset int) ([]models.FeeRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListRecords(ctx, limit, offset)
}

// Stats возвращает накопительную статистику по комиссиям.
func (s *FeeService) Stats(ctx context.Context) (*models.FeeStats, error) {
	return s.repo.GetStats(ctx)
}

// IsAdmin проверяет, является ли пользователь администратором платформы.
func (s *FeeService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	return cfg.AdminID == userID, nil
}

func (s *FeeService) requireAdmin(ctx context.Context, callerID uuid.UUID) error {
	admin, err := s.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !admin {
		return apperror.ErrUnauthorized
	}
	return nil
}

func (s *FeeService) rateFor(cfg *models.FeeConfig, kind string) int64 {
	switch kind {
	case models.FeeKindDispute:
		return cfg.DisputeFeeBP
	case models.FeeKindArbitrator:
		return cfg.ArbitratorFeeBP
	default:
		return cfg.EscrowFeeBP
	}
}
