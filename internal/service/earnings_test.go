package service

import (
	"context"
	"errors"
	"testing"

	apperrors "fanpass/internal/errors"
	"fanpass/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seededEarnings() *memDB {
	f := newReconcileFixture()
	_, _ = f.reconciler.Reconcile(context.Background(), "O1", "CAP-1")
	return f.db
}

func TestEarningsSummary_CacheMissPopulatesCache(t *testing.T) {
	db := seededEarnings()
	cache := &mockCache{}
	cache.On("GetEarningsSummary", mock.Anything, "R").Return(nil, nil).Once()
	cache.On("SetEarningsSummary", mock.Anything, mock.MatchedBy(func(s *models.EarningsSummaryResponse) bool {
		return s.UserID == "R" && s.TotalEarnings == "5.00"
	})).Return(nil).Once()

	svc := NewEarningsService(memUsers{db}, memEarnings{db}, cache)
	summary, err := svc.Summary(context.Background(), "R")
	require.NoError(t, err)

	assert.Equal(t, "rita", summary.Username)
	assert.Equal(t, "5.00", summary.PendingEarnings)
	require.Len(t, summary.Recent, 1)
	assert.Equal(t, models.RoleReferral, summary.Recent[0].Role)
	cache.AssertExpectations(t)
}

func TestEarningsSummary_CacheHit(t *testing.T) {
	cached := &models.EarningsSummaryResponse{UserID: "R", TotalEarnings: "9.00"}
	cache := &mockCache{}
	cache.On("GetEarningsSummary", mock.Anything, "R").Return(cached, nil).Once()

	svc := NewEarningsService(memUsers{newMemDB()}, memEarnings{newMemDB()}, cache)
	summary, err := svc.Summary(context.Background(), "R")
	require.NoError(t, err)
	assert.Same(t, cached, summary)
	cache.AssertNotCalled(t, "SetEarningsSummary", mock.Anything, mock.Anything)
}

func TestEarningsSummary_CacheErrorsAreNotFatal(t *testing.T) {
	db := seededEarnings()
	cache := &mockCache{}
	cache.On("GetEarningsSummary", mock.Anything, "H").Return(nil, errors.New("connection refused"))
	cache.On("SetEarningsSummary", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	svc := NewEarningsService(memUsers{db}, memEarnings{db}, cache)
	summary, err := svc.Summary(context.Background(), "H")
	require.NoError(t, err)
	assert.Equal(t, "2.50", summary.TotalEarnings)
}

func TestEarningsSummary_WithoutCache(t *testing.T) {
	db := seededEarnings()

	svc := NewEarningsService(memUsers{db}, memEarnings{db}, nil)
	summary, err := svc.Summary(context.Background(), "U")
	require.NoError(t, err)
	assert.Equal(t, "0.00", summary.TotalEarnings)
	assert.Empty(t, summary.Recent)
}

func TestEarningsSummary_UnknownUser(t *testing.T) {
	svc := NewEarningsService(memUsers{newMemDB()}, memEarnings{newMemDB()}, nil)

	_, err := svc.Summary(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
