package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var webhookRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisWebhookGuard provides distributed rate limiting and a fast duplicate
// check for the payment webhook. The database's unique event insert is the
// authoritative dedupe; the Redis marker only short-circuits the common
// retry storm without a round trip to Postgres. A nil guard (Redis down or
// not configured) disables both protections and the webhook still behaves
// correctly, just slower under replays.
type RedisWebhookGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisWebhookGuard(client redis.UniversalClient, prefix string, dedupeTTL time.Duration) *RedisWebhookGuard {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "slotpost:webhook"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}

	return &RedisWebhookGuard{
		client: client,
		prefix: trimmedPrefix,
		ttl:    dedupeTTL,
	}
}

// ConsumeRateLimit counts one webhook delivery for the subject (the payment
// provider) within the window and returns the running count and, when the
// limit is exceeded, how long until the window resets.
func (g *RedisWebhookGuard) ConsumeRateLimit(
	ctx context.Context,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if g == nil || g.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	normalizedSubject := strings.TrimSpace(subject)
	if normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:rate:%s", g.prefix, normalizedSubject)
	rawResult, err := webhookRateLimitScript.Run(ctx, g.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}

// EventSeen reports whether the event id marker is present. Read-only: the
// marker is written by MarkEventSeen only after the event has been durably
// recorded, so a delivery that failed mid-flight is retried in full.
func (g *RedisWebhookGuard) EventSeen(ctx context.Context, eventID string) (seen bool, err error) {
	if g == nil || g.client == nil {
		return false, nil
	}
	normalizedID := strings.TrimSpace(eventID)
	if normalizedID == "" {
		return false, nil
	}

	n, err := g.client.Exists(ctx, g.eventKey(normalizedID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEventSeen records the event id with SET NX. Callers invoke it only once
// the database has accepted the event; losing the marker (Redis down, TTL
// expiry) costs a Postgres round trip on replay, never a payment.
func (g *RedisWebhookGuard) MarkEventSeen(ctx context.Context, eventID string) error {
	if g == nil || g.client == nil {
		return nil
	}
	normalizedID := strings.TrimSpace(eventID)
	if normalizedID == "" {
		return nil
	}

	return g.client.SetNX(ctx, g.eventKey(normalizedID), 1, g.ttl).Err()
}

func (g *RedisWebhookGuard) eventKey(eventID string) string {
	return fmt.Sprintf("%s:event:%s", g.prefix, eventID)
}
