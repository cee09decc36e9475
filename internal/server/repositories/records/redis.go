package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const redisPingAttempts = 5

var redisPingDelay = time.Second

// NewRedisClient parses url, connects and waits for the server to answer
// PING. A store that stays silent is reported as common.ErrStoreUnavailable.
func NewRedisClient(ctx context.Context, url string, logger logging.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	for attempt := 1; ; attempt++ {
		err = client.Ping(ctx).Err()
		if err == nil {
			return client, nil
		}
		if attempt == redisPingAttempts {
			break
		}
		logger.Warn(ctx, "redis not ready, retrying", "addr", opts.Addr, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, storeError(ctx.Err())
		case <-time.After(redisPingDelay):
		}
	}

	_ = client.Close()
	return nil, storeError(err)
}

// RedisRepository keeps each record as one hash under prefix+email.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(email string) string {
	return r.prefix + email
}

func (r *RedisRepository) Get(ctx context.Context, email string) (*models.UserRecord, error) {
	h, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return nil, storeError(err)
	}
	if len(h) == 0 {
		return nil, common.ErrNotFound
	}
	return recordFromHash(email, h)
}

func (r *RedisRepository) Put(ctx context.Context, email string, fields models.RecordFields) error {
	if fields.Empty() {
		return nil
	}
	h, err := hashFromFields(fields)
	if err != nil {
		return err
	}

	args := make([]any, 0, 2*len(h))
	for k, v := range h {
		args = append(args, k, v)
	}

	key := r.key(email)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, args...)
		pipe.HIncrBy(ctx, key, FieldVersion, 1)
		return nil
	})
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (r *RedisRepository) ListCalendars(ctx context.Context, email string) ([]models.Calendar, error) {
	rec, err := r.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return rec.Calendars, nil
}

func (r *RedisRepository) SetCalendars(ctx context.Context, email string, cals []models.Calendar) error {
	_, err := r.UpdateCalendars(ctx, email, func([]models.Calendar) []models.Calendar { return cals })
	return err
}

// UpdateCalendars runs fn under WATCH on the record key. When another
// writer touches the key between the read and EXEC the transaction is
// discarded and retried.
func (r *RedisRepository) UpdateCalendars(ctx context.Context, email string, fn CalendarsFunc) ([]models.Calendar, error) {
	key := r.key(email)
	var result []models.Calendar

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return storeError(err)
		}
		if n == 0 {
			return common.ErrNotFound
		}

		raw, err := tx.HGet(ctx, key, FieldCalendars).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return storeError(err)
		}
		current, err := decodeCalendars(raw)
		if err != nil {
			return err
		}

		next := models.CloneCalendars(fn(current))
		encoded, err := encodeCalendars(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, FieldCalendars, encoded)
			pipe.HIncrBy(ctx, key, FieldVersion, 1)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < MaxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrStoreUnavailable):
			return nil, err
		default:
			return nil, storeError(err)
		}
	}
	return nil, fmt.Errorf("update calendars for record: %w", common.ErrVersionConflict)
}

func (r *RedisRepository) Delete(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.key(email)).Err(); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
