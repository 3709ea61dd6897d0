package service

import (
	"context"
	"fmt"

	"fanpass/internal/commission"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/logger"
	"fanpass/internal/models"
)

const recentEarningsLimit = 20

type EarningsService struct {
	users    UserStore
	earnings EarningsStore
	cache    EarningsCache
}

// NewEarningsService - cache may be nil, summaries are then always read from the database
func NewEarningsService(users UserStore, earnings EarningsStore, cache EarningsCache) *EarningsService {
	return &EarningsService{
		users:    users,
		earnings: earnings,
		cache:    cache,
	}
}

func (s *EarningsService) Summary(ctx context.Context, userID string) (*models.EarningsSummaryResponse, error) {
	if s.cache != nil {
		cached, err := s.cache.GetEarningsSummary(ctx, userID)
		if err != nil {
			logger.WithContext(ctx).Warn("Earnings cache read failed", "error", err, "user_id", userID)
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %w", apperrors.ErrNotFound)
	}

	recent, err := s.earnings.ListByUser(ctx, userID, recentEarningsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings: %w", err)
	}

	summary := &models.EarningsSummaryResponse{
		UserID:          user.ID,
		Username:        user.Username,
		TotalEarnings:   commission.Format(user.TotalEarnings),
		PendingEarnings: commission.Format(user.PendingEarnings),
		Recent:          recent,
	}

	if s.cache != nil {
		if err := s.cache.SetEarningsSummary(ctx, summary); err != nil {
			logger.WithContext(ctx).Warn("Earnings cache write failed", "error", err, "user_id", userID)
		}
	}

	return summary, nil
}
