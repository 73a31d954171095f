package storage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix     = "stock:"
	validationStampKey = "cart:last_validation:"
)

// RedisAdapter serves bulk stock snapshots from the `stock:` namespace and
// persists the last-validation stamp per user. The stamp carries a TTL equal
// to the hard-cooldown window, so its presence means "checked recently" and
// its absence means a validation is due.
type RedisAdapter struct {
	client   *redis.Client
	userID   string
	stampTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, userID string, stampTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, userID: userID, stampTTL: stampTTL}
}

func (r *RedisAdapter) SetStock(ctx context.Context, itemID string, quantity float64) error {
	return r.client.Set(ctx, stockKeyPrefix+itemID, quantity, 0).Err()
}

// Snapshot reads every known stock level in one pass.
func (r *RedisAdapter) Snapshot(ctx context.Context) (map[string]float64, error) {
	levels := make(map[string]float64)

	iter := r.client.Scan(ctx, 0, stockKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := r.client.Get(ctx, key).Float64()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and get
			}
			return nil, err
		}
		levels[strings.TrimPrefix(key, stockKeyPrefix)] = value
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

func (r *RedisAdapter) LastValidation(ctx context.Context) (time.Time, bool, error) {
	value, err := r.client.Get(ctx, r.stampKey()).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, nil // unreadable stamp, treat as absent
	}
	return time.Unix(0, nanos), true, nil
}

func (r *RedisAdapter) MarkValidated(ctx context.Context, at time.Time) error {
	return r.client.Set(ctx, r.stampKey(), strconv.FormatInt(at.UnixNano(), 10), r.stampTTL).Err()
}

func (r *RedisAdapter) stampKey() string {
	return validationStampKey + r.userID
}
