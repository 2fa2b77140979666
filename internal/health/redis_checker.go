package health

import (
	"context"
	"fmt"
	"time"

	redisstore "github.com/taoyao-code/worker-safety/internal/storage/redis"
)

// RedisChecker 通知队列 Redis 检查。
// Redis 只承载通知队列，故障时告警仍可落库，记为 degraded。
type RedisChecker struct {
	client *redisstore.Client
}

func NewRedisChecker(client *redisstore.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.client.PoolStats()
	r := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"timeouts":    stats.Timeouts,
		},
	}
	if stats.Timeouts > 0 && stats.Timeouts >= stats.Hits {
		r.Status, r.Message = StatusDegraded, "pool timeouts"
	}
	r.Latency = time.Since(start)
	return r
}
