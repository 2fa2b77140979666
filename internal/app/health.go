package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/worker-safety/internal/health"
	"github.com/taoyao-code/worker-safety/internal/notify"
	redisstorage "github.com/taoyao-code/worker-safety/internal/storage/redis"
	"github.com/taoyao-code/worker-safety/internal/ws"
)

// NewHealthAggregator 按已启用的组件组装检查器
func NewHealthAggregator(pool *pgxpool.Pool, redis *redisstorage.Client, hub *ws.Hub, queue notify.Queue) *health.Aggregator {
	agg := health.NewAggregator()
	if pool != nil {
		agg.AddChecker(health.NewDatabaseChecker(pool))
	} else {
		agg.AddChecker(health.CheckFunc{CheckName: "database", Fn: func(context.Context) health.CheckResult {
			return health.CheckResult{Status: health.StatusDegraded, Message: "in-memory store"}
		}})
	}
	if redis != nil {
		agg.AddChecker(health.NewRedisChecker(redis))
	}
	if hub != nil {
		agg.AddChecker(health.CheckFunc{CheckName: "websocket", Fn: func(context.Context) health.CheckResult {
			return health.CheckResult{Status: health.StatusHealthy, Details: map[string]any{"clients": hub.Count()}}
		}})
	}
	if mq, ok := queue.(*notify.MemoryQueue); ok {
		agg.AddChecker(health.CheckFunc{CheckName: "notify_queue", Fn: func(context.Context) health.CheckResult {
			r := health.CheckResult{Status: health.StatusHealthy, Details: map[string]any{"backend": "memory", "depth": mq.Len()}}
			if mq.Len() >= mq.Cap() {
				r.Status, r.Message = health.StatusDegraded, "queue full"
			}
			return r
		}})
	}
	return agg
}
