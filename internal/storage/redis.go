package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/go-redis/v9"
)

// auditTrailLength bounds the per-deity audit list.
const auditTrailLength = 1000

// RedisStore implements Store on Redis. Cooldown reservations use SET NX
// with expiry, which gives the per-triple atomicity the pipeline needs
// without any process-local locking.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store from a redis URL
// ("redis://host:port/db") or a bare "host:port" address.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection blocks until Redis answers a ping, for startup
// ordering against a containerized Redis.
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	return retry.Do(
		func() error { return r.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug("Redis not ready yet", "attempt", n+1, "error", err)
		}),
	)
}

func scoreKey(requesterID, deityID string) string {
	return "favor:" + requesterID + ":" + deityID
}

func cooldownKey(requesterID, deityID, prayerType string) string {
	return "cooldown:" + requesterID + ":" + deityID + ":" + prayerType
}

func (r *RedisStore) GetScore(ctx context.Context, requesterID, deityID string) (float64, error) {
	val, err := r.client.Get(ctx, scoreKey(requesterID, deityID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get score: %w", err)
	}
	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed score for %s/%s: %w", requesterID, deityID, err)
	}
	return score, nil
}

func (r *RedisStore) SetScore(ctx context.Context, requesterID, deityID string, score float64) error {
	err := r.client.Set(ctx, scoreKey(requesterID, deityID),
		strconv.FormatFloat(score, 'f', -1, 64), 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set score: %w", err)
	}
	return nil
}

func (r *RedisStore) AddScore(ctx context.Context, requesterID, deityID string, delta float64) (float64, error) {
	val, err := r.client.IncrByFloat(ctx, scoreKey(requesterID, deityID), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add score: %w", err)
	}
	return val, nil
}

func (r *RedisStore) GetPatron(ctx context.Context, requesterID string) (string, error) {
	val, err := r.client.Get(ctx, "patron:"+requesterID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get patron: %w", err)
	}
	return val, nil
}

func (r *RedisStore) SetPatron(ctx context.Context, requesterID, deityID string) error {
	if err := r.client.Set(ctx, "patron:"+requesterID, deityID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set patron: %w", err)
	}
	return nil
}

func (r *RedisStore) Reserve(ctx context.Context, requesterID, deityID, prayerType string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, cooldownKey(requesterID, deityID, prayerType),
		time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve cooldown: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, requesterID, deityID, prayerType string) error {
	if err := r.client.Del(ctx, cooldownKey(requesterID, deityID, prayerType)).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}
	return nil
}

func (r *RedisStore) Record(ctx context.Context, entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	key := "audit:" + entry.DeityID
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, auditTrailLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns up to n newest audit entries for a deity.
func (r *RedisStore) RecentAudit(ctx context.Context, deityID string, n int64) ([]AuditEntry, error) {
	raw, err := r.client.LRange(ctx, "audit:"+deityID, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	out := make([]AuditEntry, 0, len(raw))
	for _, item := range raw {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			r.logger.Warn("skipping malformed audit entry", "error", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
