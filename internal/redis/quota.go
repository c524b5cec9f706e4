package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Upload quota keys: quota:{user_id}:uploads, fixed window with TTL.
// The counter is authoritative; hitting the limit is reported as a normal
// per-file upload failure, never a fatal error.

type QuotaConfig struct {
	Limit  int
	Window time.Duration
}

func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Limit:  30,
		Window: time.Minute,
	}
}

// UploadQuota enforces the per-user upload quota using Redis.
type UploadQuota struct {
	client *goredis.Client
	config QuotaConfig
}

// QuotaResult contains the result of a quota check.
type QuotaResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func NewUploadQuota(client *goredis.Client, config QuotaConfig) *UploadQuota {
	return &UploadQuota{client: client, config: config}
}

// Allow consumes one upload slot for the user if available.
func (q *UploadQuota) Allow(ctx context.Context, userID string) (*QuotaResult, error) {
	key := fmt.Sprintf("quota:%s:uploads", userID)

	// Lua script for atomic increment and check
	script := goredis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('GET', key)
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end

		if current < limit then
			redis.call('INCR', key)
			if ttl == window then
				redis.call('EXPIRE', key, window)
			end
			return {1, limit - current - 1, ttl}
		else
			return {0, 0, ttl}
		end
	`)

	result, err := script.Run(ctx, q.client, []string{key}, q.config.Limit, int(q.config.Window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected quota result format")
	}

	return &QuotaResult{
		Allowed:   resultSlice[0].(int64) == 1,
		Remaining: int(resultSlice[1].(int64)),
		ResetIn:   time.Duration(resultSlice[2].(int64)) * time.Second,
	}, nil
}

// Reset clears the quota counter for a user (admin operation).
func (q *UploadQuota) Reset(ctx context.Context, userID string) error {
	key := fmt.Sprintf("quota:%s:uploads", userID)
	return q.client.Del(ctx, key).Err()
}
