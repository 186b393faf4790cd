package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestStoresMarkConvertedIsIdempotent(t *testing.T) {
	redisStore, mr := newRedisStore(t)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
	ctx := context.Background()

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			converted, err := store.HasConverted(ctx, "5215512345678")
			require.NoError(t, err)
			assert.False(t, converted)

			first, err := store.MarkConverted(ctx, "5215512345678", ReasonPurchase)
			require.NoError(t, err)
			assert.True(t, first)

			second, err := store.MarkConverted(ctx, "5215512345678", ReasonBooking)
			require.NoError(t, err)
			assert.False(t, second)

			converted, err = store.HasConverted(ctx, "5215512345678")
			require.NoError(t, err)
			assert.True(t, converted)
		})
	}

	members, err := mr.Members(convertedKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"5215512345678"}, members)
	assert.Equal(t, string(ReasonPurchase), mr.HGet(reasonKey, "5215512345678"))
	assert.Equal(t, 1, stores["memory"].(*MemoryStore).Len())
}

func TestStoresInterestSet(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	ctx := context.Background()
	for name, store := range map[string]Store{"memory": NewMemoryStore(), "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.MarkInterested(ctx, "521"))
			require.NoError(t, store.MarkInterested(ctx, "521"))
			ok, err := store.IsInterested(ctx, "521")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = store.IsInterested(ctx, "999")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoresEbookConversionIsSuperseded(t *testing.T) {
	redisStore, mr := newRedisStore(t)
	ctx := context.Background()
	for name, store := range map[string]Store{"memory": NewMemoryStore(), "redis": redisStore} {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.ConversionReason(ctx, "521")
			require.NoError(t, err)
			assert.False(t, ok)

			first, err := store.MarkConverted(ctx, "521", ReasonEbook)
			require.NoError(t, err)
			assert.True(t, first)
			again, err := store.MarkConverted(ctx, "521", ReasonEbook)
			require.NoError(t, err)
			assert.False(t, again)

			upgraded, err := store.MarkConverted(ctx, "521", ReasonFreeBooking)
			require.NoError(t, err)
			assert.True(t, upgraded)
			reason, ok, err := store.ConversionReason(ctx, "521")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ReasonFreeBooking, reason)

			later, err := store.MarkConverted(ctx, "521", ReasonEbook)
			require.NoError(t, err)
			assert.False(t, later)
			reason, _, _ = store.ConversionReason(ctx, "521")
			assert.Equal(t, ReasonFreeBooking, reason)
		})
	}
	assert.Equal(t, string(ReasonFreeBooking), mr.HGet(reasonKey, "521"))
}

func TestRedisConversionReasonWithoutHashEntry(t *testing.T) {
	store, mr := newRedisStore(t)
	_, err := mr.SAdd(convertedKey, "521")
	require.NoError(t, err)

	reason, ok, err := store.ConversionReason(context.Background(), "521")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestMemoryStoreConcurrentMarks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%5)
			ok, err := store.MarkConverted(ctx, user, ReasonPurchase)
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = store.HasConverted(ctx, user)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, inserted)
	assert.Equal(t, 5, store.Len())
}

func TestRedisStoreReportsBackendErrors(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.HasConverted(context.Background(), "521")
	assert.Error(t, err)
	_, err = store.MarkConverted(context.Background(), "521", ReasonPurchase)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithExec(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT 1 FROM conversions").WithArgs("521").WillReturnError(pgx.ErrNoRows)
	converted, err := store.HasConverted(ctx, "521")
	require.NoError(t, err)
	assert.False(t, converted)

	mock.ExpectExec("INSERT INTO conversions").WithArgs("521", "free_booking", "ebook").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	first, err := store.MarkConverted(ctx, "521", ReasonFreeBooking)
	require.NoError(t, err)
	assert.True(t, first)

	mock.ExpectExec("INSERT INTO conversions").WithArgs("521", "purchase", "ebook").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	second, err := store.MarkConverted(ctx, "521", ReasonPurchase)
	require.NoError(t, err)
	assert.False(t, second)

	mock.ExpectQuery("SELECT 1 FROM conversions").WithArgs("521").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	converted, err = store.HasConverted(ctx, "521")
	require.NoError(t, err)
	assert.True(t, converted)

	mock.ExpectQuery("SELECT reason FROM conversions").WithArgs("521").WillReturnRows(pgxmock.NewRows([]string{"reason"}).AddRow("free_booking"))
	reason, ok, err := store.ConversionReason(ctx, "521")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ReasonFreeBooking, reason)

	mock.ExpectQuery("SELECT reason FROM conversions").WithArgs("999").WillReturnError(pgx.ErrNoRows)
	_, ok, err = store.ConversionReason(ctx, "999")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec("INSERT INTO interested_users").WithArgs("521").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.MarkInterested(ctx, "521"))

	mock.ExpectQuery("SELECT 1 FROM interested_users").WithArgs("521").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	interested, err := store.IsInterested(ctx, "521")
	require.NoError(t, err)
	assert.True(t, interested)

	mock.ExpectQuery("SELECT 1 FROM conversions").WithArgs("err").WillReturnError(fmt.Errorf("connection reset"))
	_, err = store.HasConverted(ctx, "err")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
