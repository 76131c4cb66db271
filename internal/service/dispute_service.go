package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type DisputeRepository interface {
	InitConfig(ctx context.Context, arbitratorID uuid.UUID) error
	GetConfig(ctx context.Context) (*models.ArbitrationConfig, error)
	Create(ctx context.Context, jobID, initiatorID uuid.UUID, reason string) (*models.DisputeCase, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.DisputeCase, error)
	Resolve(ctx context.Context, jobID uuid.UUID, outcome string) (*models.DisputeCase, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DisputeCase, error)
}

// DisputeService — реестр арбитража, независимый от движения средств в
// эскроу. Он фиксирует, кто какое решение принял; применение решения к
// деньгам остаётся за вызывающей интеграцией.
type DisputeService struct {
	repo DisputeRepository
}

func NewDisputeService(repo DisputeRepository) *DisputeService {
	return &DisputeService{repo: repo}
}

// Initialize назначает арбитра реестра. Выполняется ровно один раз.
func (s *DisputeService) Initialize(ctx context.Context, arbitratorID uuid.UUID) error {
	return s.repo.InitConfig(ctx, arbitratorID)
}

// Arbitrator возвращает назначенного арбитра.
func (s *DisputeService) Arbitrator(ctx context.Context) (uuid.UUID, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return cfg.ArbitratorID, nil
}

// Open открывает спор по работе. Реестр должен быть инициализирован,
// повторный спор по той же работе отклоняется.
func (s *DisputeService) Open(ctx context.Context, jobID, initiatorID uuid.UUID, reason string) (*models.DisputeCase, error) {
	if _, err := s.repo.GetConfig(ctx); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, jobID, initiatorID, reason)
}

// Get возвращает спор по работе.
func (s *DisputeService) Get(ctx context.Context, jobID uuid.UUID) (*models.DisputeCase, error) {
	return s.repo.GetByJobID(ctx, jobID)
}

// Resolve фиксирует решение арбитра. Вызов с решением "none" — ошибка
// интеграции, а не штатный отказ, поэтому он завершает процесс паникой.
func (s *DisputeService) Resolve(ctx context.Context, jobID, callerID uuid.UUID, outcome string) (*models.DisputeCase, error) {
	if outcome == "" || outcome == models.DisputeOutcomeNone {
		panic("dispute service: resolve called with outcome \"none\"")
	}
	if outcome != models.DisputeOutcomeFavorPayer && outcome != models.DisputeOutcomeFavorPayee {
		return nil, apperror.New(apperror.ErrCodeInvalidDisputeResult, "неизвестное решение арбитра: "+outcome)
	}

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.ArbitratorID != callerID {
		return nil, apperror.ErrUnauthorized
	}

	return s.repo.Resolve(ctx, jobID, outcome)
}

// ListMine возвращает споры, открытые пользователем.
func (s *DisputeService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.DisputeCase, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
