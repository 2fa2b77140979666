package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseChecker PostgreSQL 连接池检查
type DatabaseChecker struct {
	pool *pgxpool.Pool
}

func NewDatabaseChecker(pool *pgxpool.Pool) *DatabaseChecker {
	return &DatabaseChecker{pool: pool}
}

func (c *DatabaseChecker) Name() string { return "database" }

func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.pool.Stat()
	r := poolUtilization(float64(stats.AcquiredConns()), float64(stats.MaxConns()))
	r.Details["total_conns"] = stats.TotalConns()
	r.Details["idle_conns"] = stats.IdleConns()
	r.Details["acquired_conns"] = stats.AcquiredConns()
	r.Details["max_conns"] = stats.MaxConns()
	r.Latency = time.Since(start)
	return r
}

// poolUtilization 占用率 >90% 降级，占满不健康
func poolUtilization(used, max float64) CheckResult {
	util := 0.0
	if max > 0 {
		util = used / max
	}
	r := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"utilization": fmt.Sprintf("%.1f%%", util*100)},
	}
	switch {
	case util >= 1.0:
		r.Status, r.Message = StatusUnhealthy, "connection pool exhausted"
	case util > 0.9:
		r.Status, r.Message = StatusDegraded, "connection pool near limit"
	}
	return r
}
