package claims

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/tasknest/tasknest/pkg/apperr"
)

// VersionLookup returns the authoritative claims version for a user, so a
// cached snapshot can be checked against the profile store.
type VersionLookup func(ctx context.Context, userID string) (int64, error)

// SweepStale scans every cached snapshot and drops the ones whose version
// lags the profile store. A claims write that failed after a profile commit
// leaves a stale snapshot behind; this sweep is the repair path that retires
// it so the next read refills from the store.
//
// Returns how many snapshots were dropped. Users missing from the store are
// dropped too.
func (p *RedisProvider) SweepStale(ctx context.Context, lookup VersionLookup) (int, error) {
	var dropped int
	var cursor uint64

	for {
		keys, next, err := p.client.Scan(ctx, cursor, claimsKeyPrefix+"*", 100).Result()
		if err != nil {
			return dropped, apperr.Internal(err, "scan claims keys")
		}

		for _, key := range keys {
			userID := strings.TrimPrefix(key, claimsKeyPrefix)

			data, err := p.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			} else if err != nil {
				return dropped, apperr.Internal(err, "read claims for user %s", userID)
			}

			var snap Snapshot
			if err := json.Unmarshal([]byte(data), &snap); err != nil {
				p.client.Del(ctx, key)
				dropped++
				continue
			}

			current, err := lookup(ctx, userID)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFound) {
					p.client.Del(ctx, key)
					dropped++
					continue
				}
				return dropped, err
			}

			if snap.ClaimsVersion < current {
				p.client.Del(ctx, key)
				dropped++
			}
		}

		cursor = next
		if cursor == 0 {
			return dropped, nil
		}
	}
}
