package events

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO processed_events").WithArgs(SourceTwilio, "SM2").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	ok, err := store.MarkProcessed(ctx, SourceTwilio, "SM2")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs(SourceTwilio, "SM2").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	ok, err = store.MarkProcessed(ctx, SourceTwilio, "SM2")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs(SourceStorefront, "d-1").WillReturnError(errors.New("conn reset"))
	_, err = store.MarkProcessed(ctx, SourceStorefront, "d-1")
	assert.ErrorContains(t, err, "mark processed")

	mock.ExpectExec("DELETE FROM processed_events").WithArgs(SourceTwilio, "SM2").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Release(ctx, SourceTwilio, "SM2"))

	mock.ExpectExec("DELETE FROM processed_events").WithArgs(SourceStorefront, "d-1").WillReturnError(errors.New("conn reset"))
	assert.ErrorContains(t, store.Release(ctx, SourceStorefront, "d-1"), "release")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryProcessedStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryProcessedStore(time.Hour)
	store.now = func() time.Time { return now }

	ok, _ := store.MarkProcessed(ctx, SourceTwilio, "SM1")
	assert.True(t, ok)
	ok, _ = store.MarkProcessed(ctx, SourceTwilio, "SM1")
	assert.False(t, ok)
	ok, _ = store.MarkProcessed(ctx, SourceStorefront, "SM1")
	assert.True(t, ok, "sources are independent")

	require.NoError(t, store.Release(ctx, SourceStorefront, "SM1"))
	ok, _ = store.MarkProcessed(ctx, SourceStorefront, "SM1")
	assert.True(t, ok, "released ids can be claimed again")

	now = now.Add(2 * time.Hour)
	ok, _ = store.MarkProcessed(ctx, SourceTwilio, "SM1")
	assert.True(t, ok, "expired ids can be claimed again")
}
