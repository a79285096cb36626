package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// getSetter is satisfied by both *redis.Client and *redis.Tx.
type getSetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps sessions as JSON under "session:<id>". Lock is an
// in-process lock: the bot runs as a single process.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	locks  keyedMutex
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, customerID int64) (Session, error) {
	sess, err := s.load(ctx, s.client, customerID)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, customerID int64) (Session, error) {
	sess, err := s.Get(ctx, customerID)
	if errors.Is(err, ErrSessionNotFound) {
		sess = newSession(customerID)
		if err := s.save(ctx, s.client, sess); err != nil {
			return Session{}, err
		}
		return sess, nil
	}
	return sess, err
}

// Update applies patch inside a WATCH transaction and retries when another
// writer touched the key in between.
func (s *RedisStore) Update(ctx context.Context, customerID int64, patch func(*Session)) (Session, error) {
	key := buildSessionKey(customerID)

	var result Session
	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, customerID)
		if errors.Is(err, ErrSessionNotFound) {
			sess = newSession(customerID)
		} else if err != nil {
			return err
		}

		sess, err = applyPatch(customerID, sess, patch)
		if err != nil {
			return err
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("update session: %w", err)
		}
		return result, nil
	}
	return Session{}, fmt.Errorf("update session: %w", redis.TxFailedErr)
}

func (s *RedisStore) Clear(ctx context.Context, customerID int64) error {
	if err := s.save(ctx, s.client, newSession(customerID)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lock(customerID int64) func() {
	return s.locks.Lock(customerID)
}

func (s *RedisStore) load(ctx context.Context, c getSetter, customerID int64) (Session, error) {
	data, err := c.Get(ctx, buildSessionKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if !sess.Stage.Valid() {
		return Session{}, fmt.Errorf("%w: stored %q", ErrInvalidStage, sess.Stage)
	}
	return sess, nil
}

func (s *RedisStore) save(ctx context.Context, c getSetter, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return c.Set(ctx, buildSessionKey(sess.CustomerID), data, s.ttl).Err()
}

func buildSessionKey(customerID int64) string {
	return fmt.Sprintf("session:%d", customerID)
}
