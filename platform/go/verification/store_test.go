package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(context.Background(), client)
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreCodeRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "a@x.com", "123456", 15*time.Minute))

	code, err := store.GetCode(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "123456", code)

	require.NoError(t, store.DeleteCode(ctx, "a@x.com"))
	_, err = store.GetCode(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiryLooksLikeMissing(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "a@x.com", "123456", 15*time.Minute))
	mr.FastForward(16 * time.Minute)

	_, err := store.GetCode(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorePendingRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	pending := PendingSignup{
		Email:       "a@x.com",
		Username:    "a",
		FirstName:   "Ada",
		LastName:    "Obi",
		Kind:        KindAgent,
		AgencyName:  "Best Homes!!",
		ContactInfo: "+2348012345678",
	}
	require.NoError(t, store.PutPending(ctx, pending.Email, pending, time.Hour))

	got, err := store.GetPending(ctx, pending.Email)
	require.NoError(t, err)
	require.Equal(t, pending, got)
}

func TestRedisStoreLastWriterWins(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCode(ctx, "a@x.com", "111111", 15*time.Minute))
	require.NoError(t, store.PutCode(ctx, "a@x.com", "222222", 15*time.Minute))

	code, err := store.GetCode(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "222222", code)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	store.SetClock(func() time.Time { return base })
	require.NoError(t, store.PutResetCode(ctx, "a@x.com", "654321", 15*time.Minute))

	code, err := store.GetResetCode(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "654321", code)

	store.SetClock(func() time.Time { return base.Add(16 * time.Minute) })
	_, err = store.GetResetCode(ctx, "a@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}
