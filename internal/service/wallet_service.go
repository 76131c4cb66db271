package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type WalletRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

type WalletService struct {
	repo WalletRepository
}

func NewWalletService(repo WalletRepository) *WalletService {
	return &WalletService{repo: repo}
}

// GetBalance возвращает баланс пользователя.
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// TopUp пополняет доступный баланс.
func (s *WalletService) TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount
	}
	return s.repo.TopUp(ctx, userID, amount)
}

// ListTransactions возвращает историю движений средств.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
