package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/logger"
)

const (
	fieldData         = "data"
	fieldAccessCount  = "access_count"
	fieldLastAccessed = "last_accessed_at"
	fieldRating       = "user_rating"
	fieldFeedback     = "user_feedback"
)

// touchScript bumps the access counters and returns the stored fields, or
// nil when the key does not exist.
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], 'access_count', 1)
redis.call('HSET', KEYS[1], 'last_accessed_at', ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return redis.call('HMGET', KEYS[1], 'data', 'access_count', 'last_accessed_at', 'user_rating', 'user_feedback')
`)

var feedbackScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'user_rating', ARGV[1], 'user_feedback', ARGV[2])
return 1
`)

// evictScript deletes the listed reports whose index score is still below
// ARGV[1]. KEYS[i] and ARGV[i] pair a report key with its index member for
// i >= 2, so a report touched after the scan survives.
var evictScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1])
local n = 0
for i = 2, #KEYS do
	local score = redis.call('ZSCORE', KEYS[1], ARGV[i])
	if score and tonumber(score) < cutoff then
		n = n + redis.call('DEL', KEYS[i])
		redis.call('ZREM', KEYS[1], ARGV[i])
	end
end
return n
`)

const evictBatch = 256

// Client stores each report as a hash and indexes keys by last access in a
// sorted set for retention cleanup.
type Client struct {
	client *redis.Client
	prefix string
}

func NewClient(host string, port int, password string, db int, prefix string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = "keyfindings"
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, prefix: prefix}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Name() string {
	return "redis"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) reportKey(key string) string {
	return fmt.Sprintf("%s:report:%s", c.prefix, key)
}

func (c *Client) indexKey() string {
	return c.prefix + ":reports:accessed"
}

func (c *Client) Load(ctx context.Context, key string, accessedAt time.Time) (*models.CachedReport, error) {
	ms := accessedAt.UnixMilli()
	res, err := touchScript.Run(ctx, c.client, []string{c.reportKey(key), c.indexKey()}, ms, key).Slice()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	if len(res) != 5 {
		return nil, fmt.Errorf("unexpected reply length %d", len(res))
	}

	data, _ := res[0].(string)
	var r models.CachedReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	if s, ok := res[1].(string); ok {
		r.AccessCount, _ = strconv.ParseInt(s, 10, 64)
	}
	if s, ok := res[2].(string); ok {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			r.LastAccessedAt = time.UnixMilli(v)
		}
	}
	if s, ok := res[3].(string); ok {
		if v, err := strconv.Atoi(s); err == nil {
			r.UserRating = &v
		}
	}
	if s, ok := res[4].(string); ok {
		r.UserFeedback = &s
	}

	logger.Debug("Report cache hit", zap.String("scenario_key", key))
	return &r, nil
}

func (c *Client) Save(ctx context.Context, report *models.CachedReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	rk := c.reportKey(report.ScenarioKey)
	fields := []interface{}{
		fieldData, data,
		fieldAccessCount, report.AccessCount,
		fieldLastAccessed, report.LastAccessedAt.UnixMilli(),
	}
	if report.UserRating != nil {
		fields = append(fields, fieldRating, *report.UserRating)
	}
	if report.UserFeedback != nil {
		fields = append(fields, fieldFeedback, *report.UserFeedback)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rk)
		pipe.HSet(ctx, rk, fields...)
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{
			Score:  float64(report.LastAccessedAt.UnixMilli()),
			Member: report.ScenarioKey,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	logger.Debug("Report cached", zap.String("scenario_key", report.ScenarioKey))
	return nil
}

func (c *Client) UpdateFeedback(ctx context.Context, key string, rating int, feedback string) (bool, error) {
	n, err := feedbackScript.Run(ctx, c.client, []string{c.reportKey(key)}, rating, feedback).Int()
	if err != nil {
		return false, fmt.Errorf("failed to store feedback: %w", err)
	}
	return n == 1, nil
}

func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	keys, err := c.client.ZRangeByScore(ctx, c.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale reports: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var deleted int64
	for start := 0; start < len(keys); start += evictBatch {
		end := start + evictBatch
		if end > len(keys) {
			end = len(keys)
		}
		n, err := c.evictIdle(ctx, cutoff, keys[start:end])
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

// evictIdle deletes the given members if they are still idle at cutoff.
func (c *Client) evictIdle(ctx context.Context, cutoff time.Time, members []string) (int64, error) {
	keys := make([]string, 0, len(members)+1)
	args := make([]interface{}, 0, len(members)+1)
	keys = append(keys, c.indexKey())
	args = append(args, cutoff.UnixMilli())
	for _, m := range members {
		keys = append(keys, c.reportKey(m))
		args = append(args, m)
	}

	n, err := evictScript.Run(ctx, c.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale reports: %w", err)
	}
	return n, nil
}

func (c *Client) Count(ctx context.Context) (int64, error) {
	return c.client.ZCard(ctx, c.indexKey()).Result()
}
