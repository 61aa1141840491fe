package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

func newRedisLoader(t *testing.T) (*Loader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := &RedisStore{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), Prefix: "test:"}
	t.Cleanup(func() { _ = store.Client.Close() })
	return NewLoader(store, time.Minute, logrus.New()), mr
}

func TestRememberLoadsOnceThenHits(t *testing.T) {
	l, mr := newRedisLoader(t)
	ctx := context.Background()
	var calls int32
	load := func() (snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshot{Status: "submitted", Amount: 5000}, nil
	}

	first, err := Remember(ctx, l, "application:1", load)
	require.NoError(t, err)
	second, err := Remember(ctx, l, "application:1", load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("test:application:1"))
	assert.Equal(t, time.Minute, mr.TTL("test:application:1"))
}

func TestInvalidateForcesReload(t *testing.T) {
	l, mr := newRedisLoader(t)
	ctx := context.Background()
	status := "submitted"
	load := func() (snapshot, error) { return snapshot{Status: status}, nil }

	_, err := Remember(ctx, l, "application:2", load)
	require.NoError(t, err)

	status = "under_review"
	l.Invalidate(ctx, "application:2")
	assert.False(t, mr.Exists("test:application:2"))

	got, err := Remember(ctx, l, "application:2", load)
	require.NoError(t, err)
	assert.Equal(t, "under_review", got.Status)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	l, mr := newRedisLoader(t)
	_, err := Remember(context.Background(), l, "budget:x", func() (snapshot, error) {
		return snapshot{}, errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("test:budget:x"))
}

func TestRememberFallsBackWhenRedisIsDown(t *testing.T) {
	l, mr := newRedisLoader(t)
	mr.Close()

	got, err := Remember(context.Background(), l, "budget:y", func() (snapshot, error) {
		return snapshot{Status: "active"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "active", got.Status)
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	l := NewLoader(Nop{}, time.Minute, logrus.New())
	var calls int32
	release := make(chan struct{})
	load := func() (snapshot, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return snapshot{Status: "approved"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Remember(context.Background(), l, "application:3", load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}
