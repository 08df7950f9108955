package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"loan-api/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	redisSeqKey   = "loan:applications:seq"
	redisOrderKey = "loan:applications"
	redisRecordNS = "loan:application:"
)

// advanceScript raises the sequence counter to ARGV[1] without ever lowering it.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local target = tonumber(ARGV[1])
if current < target then
	redis.call('SET', KEYS[1], target)
	return target
end
return current
`)

// RedisRepository stores each application as JSON under loan:application:<id>
// and keeps creation order in the loan:applications list.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func recordKey(id string) string {
	return redisRecordNS + id
}

func (r *RedisRepository) NextSequence(ctx context.Context) (int64, error) {
	return r.client.Incr(ctx, redisSeqKey).Result()
}

func (r *RedisRepository) AdvanceSequence(ctx context.Context, atLeast int64) error {
	return advanceScript.Run(ctx, r.client, []string{redisSeqKey}, atLeast).Err()
}

func (r *RedisRepository) Insert(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}

	created, err := r.client.SetNX(ctx, recordKey(app.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrDuplicateID
	}
	return r.client.RPush(ctx, redisOrderKey, app.ID).Err()
}

func (r *RedisRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	data, err := r.client.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	var app models.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", id, err)
	}
	return &app, nil
}

func (r *RedisRepository) List(ctx context.Context) ([]*models.Application, error) {
	ids, err := r.client.LRange(ctx, redisOrderKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	apps := make([]*models.Application, 0, len(ids))
	if len(ids) == 0 {
		return apps, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // listed id without a record
		}
		var app models.Application
		if err := json.Unmarshal([]byte(raw), &app); err != nil {
			return nil, fmt.Errorf("decode application %s: %w", ids[i], err)
		}
		apps = append(apps, &app)
	}
	return apps, nil
}

func (r *RedisRepository) Save(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}

	updated, err := r.client.SetXX(ctx, recordKey(app.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !updated {
		return ErrRecordNotFound
	}
	return nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
