package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"intelplatform/internal/models"
)

const (
	lockoutStripes      = 64
	lockoutRetryInitial = 2 * time.Millisecond
	lockoutRetryMax     = 100 * time.Millisecond
)

var ErrLockoutContention = errors.New("lockout update contention")

// RedisLockoutStore keeps one hash per username. Updates from this process
// are serialized per username by striped locks; updates racing with other
// processes are serialized with WATCH/MULTI and retried until ctx ends.
type RedisLockoutStore struct {
	client  *redis.Client
	prefix  string
	stripes [lockoutStripes]chan struct{}
}

func NewRedisLockoutStore(client *redis.Client) *RedisLockoutStore {
	store := &RedisLockoutStore{client: client, prefix: "lockout:"}
	for i := range store.stripes {
		store.stripes[i] = make(chan struct{}, 1)
	}
	return store
}

func (r *RedisLockoutStore) stripe(username string) chan struct{} {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return r.stripes[h.Sum32()%lockoutStripes]
}

func (r *RedisLockoutStore) key(username string) string {
	return r.prefix + username
}

func (r *RedisLockoutStore) Get(ctx context.Context, username string) (models.Lockout, error) {
	values, err := r.client.HGetAll(ctx, r.key(username)).Result()
	if err != nil {
		return models.Lockout{}, err
	}
	return parseLockout(username, values)
}

func (r *RedisLockoutStore) Update(ctx context.Context, username string, fn func(*models.Lockout) error) error {
	key := r.key(username)

	txf := func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		lockout, err := parseLockout(username, values)
		if err != nil {
			return err
		}
		if err := fn(&lockout); err != nil {
			return err
		}
		if len(values) == 0 && lockout.Clear() {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"failed_attempts", lockout.FailedAttempts,
				"locked_until", epochSeconds(lockout.LockedUntil),
			)
			return nil
		})
		return err
	}

	lock := r.stripe(username)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLockoutContention, ctx.Err())
	}
	defer func() { <-lock }()

	delay := lockoutRetryInitial
	for {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		// another process wrote the key between WATCH and EXEC
		wait := delay/2 + rand.N(delay/2+1)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLockoutContention, ctx.Err())
		}
		delay = min(delay*2, lockoutRetryMax)
	}
}

func (r *RedisLockoutStore) Delete(ctx context.Context, username string) error {
	return r.client.Del(ctx, r.key(username)).Err()
}

func parseLockout(username string, values map[string]string) (models.Lockout, error) {
	lockout := models.Lockout{Username: username}
	if len(values) == 0 {
		return lockout, nil
	}

	attempts, err := strconv.Atoi(values["failed_attempts"])
	if err != nil {
		return models.Lockout{}, fmt.Errorf("parse failed_attempts: %w", err)
	}
	lockedUntil, err := strconv.ParseInt(values["locked_until"], 10, 64)
	if err != nil {
		return models.Lockout{}, fmt.Errorf("parse locked_until: %w", err)
	}

	lockout.FailedAttempts = attempts
	lockout.LockedUntil = fromEpochSeconds(lockedUntil)
	return lockout, nil
}
