package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tasknest/tasknest/pkg/apperr"
)

// Provider stores the current claims snapshot per user. A nil snapshot with
// a nil error means no snapshot is held for the user.
type Provider interface {
	// Get returns the latest stored snapshot for the user.
	Get(ctx context.Context, userID string) (*Snapshot, error)
	// Put stores the snapshot as the latest claims for its user.
	Put(ctx context.Context, snap *Snapshot) error
	// Invalidate drops any stored snapshot for the user.
	Invalidate(ctx context.Context, userID string) error
}

const claimsKeyPrefix = "claims:user:"

// RedisProvider stores claims snapshots in Redis.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProvider creates a provider backed by the given Redis client.
// A zero ttl keeps snapshots until explicitly invalidated.
func NewRedisProvider(client *redis.Client, ttl time.Duration) *RedisProvider {
	return &RedisProvider{client: client, ttl: ttl}
}

// NewRedisProviderFromURL connects to Redis at the given URL and verifies
// the connection before returning.
func NewRedisProviderFromURL(url string, ttl time.Duration) (*RedisProvider, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProvider(client, ttl), nil
}

// Get retrieves the stored snapshot for a user, or nil on a miss.
func (p *RedisProvider) Get(ctx context.Context, userID string) (*Snapshot, error) {
	key := claimsKeyPrefix + userID

	data, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, apperr.Internal(err, "read claims for user %s", userID)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		// Drop corrupt data rather than serving it.
		p.client.Del(ctx, key)
		return nil, apperr.Internal(err, "unmarshal claims for user %s", userID)
	}
	return &snap, nil
}

// Put stores the snapshot, refusing to overwrite a newer version. Claims
// versions only move forward, so a concurrent writer that lost the profile
// store race must not win the claims race.
func (p *RedisProvider) Put(ctx context.Context, snap *Snapshot) error {
	if snap.UserID == "" {
		return apperr.InvalidArgument("snapshot has no user id")
	}
	key := claimsKeyPrefix + snap.UserID

	data, err := json.Marshal(snap)
	if err != nil {
		return apperr.Internal(err, "marshal claims for user %s", snap.UserID)
	}

	err = p.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var existing Snapshot
			if jsonErr := json.Unmarshal([]byte(current), &existing); jsonErr == nil &&
				existing.ClaimsVersion > snap.ClaimsVersion {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, p.ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return apperr.Internal(err, "write claims for user %s", snap.UserID)
	}
	return nil
}

// Invalidate removes the stored snapshot for a user.
func (p *RedisProvider) Invalidate(ctx context.Context, userID string) error {
	if err := p.client.Del(ctx, claimsKeyPrefix+userID).Err(); err != nil {
		return apperr.Internal(err, "invalidate claims for user %s", userID)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
