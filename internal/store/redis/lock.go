package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes a best-effort exclusive lock on key for ttl. ok is false when
// another holder has it. The returned release is safe to call once.
func (ps *PubSub) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, fmt.Errorf("redis.PubSub.Acquire: token: %w", err)
	}

	ok, err := ps.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis.PubSub.Acquire: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, ps.client, []string{lockKey(key)}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("redis: release lock failed")
		}
	}
	return release, true, nil
}

func lockKey(key string) string {
	return "lock:" + key
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
