package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type RateLimitRepository interface {
	Get(ctx context.Context, callerID uuid.UUID, kind string) (*models.RateLimit, error)
	Upsert(ctx context.Context, entry *models.RateLimit) error
	Reset(ctx context.Context, callerID uuid.UUID, kind string, windowStart time.Time) error
	GetBypass(ctx context.Context, callerID uuid.UUID) (bool, error)
	SetBypass(ctx context.Context, callerID uuid.UUID, enabled bool) error
}

// RateLimitService считает вызовы в фиксированном окне для пары
// (вызывающий, вид операции). Окно перезапускается целиком, поэтому на
// его границе допустим кратковременный всплеск до удвоенного лимита.
type RateLimitService struct {
	repo RateLimitRepository
	now  func() time.Time
}

func NewRateLimitService(repo RateLimitRepository) *RateLimitService {
	return &RateLimitService{repo: repo, now: time.Now}
}

// Check учитывает один вызов. Возвращает ErrRateLimitExceeded, если лимит
// в текущем окне исчерпан; счётчик при отказе не увеличивается.
// Пользователь с активным флагом обхода пропускается без изменения счётчика.
func (s *RateLimitService) Check(ctx context.Context, callerID uuid.UUID, kind string, maxCalls int64, window time.Duration) error {
	bypass, err := s.repo.GetBypass(ctx, callerID)
	if err != nil {
		return err
	}
	if bypass {
		return nil
	}

	entry, err := s.repo.Get(ctx, callerID, kind)
	if err != nil {
		return err
	}

	now := s.now()
	if entry == nil {
		entry = &models.RateLimit{CallerID: callerID, Kind: kind, WindowStart: now}
	}

	// Окно истекло — перезапускаем счётчик
	if now.Sub(entry.WindowStart) > window {
		entry.CurrentCalls = 0
		entry.WindowStart = now
	}

	if entry.CurrentCalls >= maxCalls {
		return apperror.ErrRateLimitExceeded
	}

	entry.CurrentCalls++
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return err
	}

	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{
			"caller":       callerID,
			"kind":         kind,
			"calls":        entry.CurrentCalls,
			"window_start": entry.WindowStart,
		}).Info("rate limit: call counted")
	}

	return nil
}

// Reset обнуляет счётчик и перезапускает окно. Административная операция
// для ручного снятия блокировки, не часть обычного трафика.
func (s *RateLimitService) Reset(ctx context.Context, callerID uuid.UUID, kind string) error {
	return s.repo.Reset(ctx, callerID, kind, s.now())
}

// Get возвращает текущее состояние счётчика или nil, если вызовов не было.
func (s *RateLimitService) Get(ctx context.Context, callerID uuid.UUID, kind string) (*models.RateLimit, error) {
	return s.repo.Get(ctx, callerID, kind)
}

// SetBypass включает или выключает обход лимитов для пользователя.
func (s *RateLimitService) SetBypass(ctx context.Context, callerID uuid.UUID, enabled bool) error {
	return s.repo.SetBypass(ctx, callerID, enabled)
}

// GetBypass возвращает состояние флага обхода.
func (s *RateLimitService) GetBypass(ctx context.Context, callerID uuid.UUID) (bool, error) {
	return s.repo.GetBypass(ctx, callerID)
}
