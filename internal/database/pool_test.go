package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_RetriesConnectionErrors(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnOtherErrors(t *testing.T) {
	calls := 0
	want := errors.New("syntax error at or near")
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("driver: bad connection")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestHealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := New(sqlx.NewDb(sqlDB, "sqlmock"))
	defer db.Close()

	mock.ExpectPing()
	hc := db.HealthCheck(context.Background())
	assert.Equal(t, "healthy", hc.Status)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	hc = db.HealthCheck(context.Background())
	assert.Equal(t, "unhealthy", hc.Status)
	assert.Contains(t, hc.Error, "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}
