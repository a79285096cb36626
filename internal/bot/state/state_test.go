package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, 1)
			require.ErrorIs(t, err, ErrSessionNotFound)

			sess, err := store.GetOrCreate(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, Session{CustomerID: 1, Stage: StageIdle}, sess)

			sess, err = store.Update(ctx, 1, func(s *Session) {
				s.Stage = StageAwaitingPhone
				s.Draft.ProductID = 5
			})
			require.NoError(t, err)
			assert.Equal(t, StageAwaitingPhone, sess.Stage)

			got, err := store.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(5), got.Draft.ProductID)

			require.NoError(t, store.Clear(ctx, 1))
			got, err = store.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, StageIdle, got.Stage)
			assert.Equal(t, Draft{}, got.Draft)
		})
	}
}

func TestStoreRejectsUnknownStage(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Update(ctx, 2, func(s *Session) { s.Stage = "shopping" })
			require.ErrorIs(t, err, ErrInvalidStage)

			_, err = store.Get(ctx, 2)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStoreUpdateCreatesSession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Update(context.Background(), 3, func(s *Session) {
				s.Stage = StageBrowsing
			})
			require.NoError(t, err)
			assert.Equal(t, int64(3), sess.CustomerID)
			assert.Equal(t, StageBrowsing, sess.Stage)
		})
	}
}

func TestStoreLockSerialisesUpdates(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 20

			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := store.Lock(7)
					defer unlock()

					sess, err := store.GetOrCreate(ctx, 7)
					if !assert.NoError(t, err) {
						return
					}
					next := sess.Draft.ProductID + 1
					_, err = store.Update(ctx, 7, func(s *Session) { s.Draft.ProductID = next })
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			sess, err := store.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, int64(workers), sess.Draft.ProductID)
		})
	}
}

func TestKeyedMutexForgetsReleasedKeys(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock(1)
	unlock()
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestDraftComplete(t *testing.T) {
	d := Draft{ProductID: 1, Phone: "+79990000000", Address: "Ленина 1"}
	assert.False(t, d.Complete())
	d.Date = "01.03.2026"
	assert.True(t, d.Complete())
}
