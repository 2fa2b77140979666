package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	redisstorage "github.com/taoyao-code/worker-safety/internal/storage/redis"
)

const (
	deadLetterInterval  = time.Hour
	deadLetterRetention = 24 * time.Hour
	deadLetterBatch     = 100
	// 清理后仍超过该数量时告警
	deadLetterWarnDepth = 1000
)

// DeadLetterCleaner 定期清理通知死信队列中超过保留期的记录
type DeadLetterCleaner struct {
	queue     *redisstorage.ListQueue
	logger    *zap.Logger
	clock     clockwork.Clock
	interval  time.Duration
	retention time.Duration

	statsCleaned atomic.Int64
}

// NewDeadLetterCleaner 创建清理器
func NewDeadLetterCleaner(queue *redisstorage.ListQueue, logger *zap.Logger) *DeadLetterCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterCleaner{
		queue:     queue,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
		interval:  deadLetterInterval,
		retention: deadLetterRetention,
	}
}

// Start 阻塞运行直到 ctx 取消
func (c *DeadLetterCleaner) Start(ctx context.Context) {
	c.logger.Info("dead letter cleaner started",
		zap.Duration("interval", c.interval),
		zap.Duration("retention", c.retention))

	t := c.clock.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dead letter cleaner stopped", zap.Int64("total_cleaned", c.statsCleaned.Load()))
			return
		case <-t.Chan():
			c.CleanOnce(ctx)
		}
	}
}

// CleanOnce 执行一轮清理，返回本轮清理数
func (c *DeadLetterCleaner) CleanOnce(ctx context.Context) int64 {
	count, err := c.queue.DLQLen(ctx)
	if err != nil {
		c.logger.Error("get dead letter count failed", zap.Error(err))
		return 0
	}
	if count == 0 {
		return 0
	}

	cleaned, err := c.queue.CleanExpiredDead(ctx, c.clock.Now(), c.retention, deadLetterBatch)
	if err != nil {
		c.logger.Error("clean expired dead letters failed", zap.Error(err), zap.Int64("dead_count", count))
	} else if cleaned > 0 {
		c.statsCleaned.Add(cleaned)
		c.logger.Info("cleaned expired dead letters",
			zap.Int64("cleaned", cleaned),
			zap.Int64("remaining", count-cleaned),
			zap.Int64("total_cleaned", c.statsCleaned.Load()))
	}

	if remaining := count - cleaned; remaining > deadLetterWarnDepth {
		c.logger.Warn("notification dead letter queue overloaded",
			zap.Int64("dead_count", remaining),
			zap.String("suggestion", "check notification channel configuration"))
	}
	return cleaned
}

// TotalCleaned 累计清理数
func (c *DeadLetterCleaner) TotalCleaned() int64 {
	return c.statsCleaned.Load()
}
