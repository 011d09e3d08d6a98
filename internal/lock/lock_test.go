package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameKey(t *testing.T) {
	m := NewManager()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock(context.Background(), "a1", func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, m.Held(), "entries are released")
}

func TestWithLockDifferentKeysRunInParallel(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.WithLock(context.Background(), "a1", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), "a2", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a2 blocked behind a1")
	}
	close(release)
}

func TestWithLockReturnsFnError(t *testing.T) {
	boom := errors.New("boom")
	err := NewManager().WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockerLockUnlock(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "vitalq:")
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("vitalq:lock:a1"))
	assert.Greater(t, mr.TTL("vitalq:lock:a1"), time.Duration(0))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("vitalq:lock:a1"))
}

func TestRedisLockerContention(t *testing.T) {
	_, client := newRedis(t)
	l1 := NewRedisLocker(client, "vitalq:")
	l2 := NewRedisLocker(client, "vitalq:")
	ctx := context.Background()

	unlock1, err := l1.Lock(ctx, "a1", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = l2.Lock(short, "a1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))
	unlock2, err := l2.Lock(ctx, "a1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLockerUnlockKeepsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLocker(client, "vitalq:")
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "a1", time.Second)
	require.NoError(t, err)

	// The lock expired and another holder took it over.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("vitalq:lock:a1", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("vitalq:lock:a1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestManagerWithRedisLocker(t *testing.T) {
	mr, client := newRedis(t)
	m := NewManager(WithLocker(NewRedisLocker(client, "vitalq:")), WithTTL(10*time.Second))

	err := m.WithLock(context.Background(), "a1", func(context.Context) error {
		assert.True(t, mr.Exists("vitalq:lock:a1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("vitalq:lock:a1"))
}

func TestManagerDistributedLockFailure(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()
	m := NewManager(WithLocker(NewRedisLocker(client, "vitalq:")))

	called := false
	err := m.WithLock(context.Background(), "a1", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
