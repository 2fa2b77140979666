// Package notify Critical 告警的外发通知：有界队列 + 工作协程，逐通道发送（邮件、Web Push、Webhook）。
// 发送失败只记录与计数，不在线重试。
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	redisstore "github.com/taoyao-code/worker-safety/internal/storage/redis"
)

// ErrQueueFull 队列已满
var ErrQueueFull = errors.New("notify queue full")

// Job 一次外发任务
type Job struct {
	Alert      coremodel.Alert `json:"alert"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue 任务队列后端
type Queue interface {
	// Offer 非阻塞入队；满时返回 ErrQueueFull
	Offer(ctx context.Context, job Job) error
	// Take 阻塞直到取到任务或 ctx 结束
	Take(ctx context.Context) (Job, error)
	// Fail 记录失败任务（内存队列仅丢弃）
	Fail(ctx context.Context, job Job, reason string)
	// Backend 指标标签
	Backend() string
}

// MemoryQueue 进程内有界通道
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue 容量 size（<=0 时为 1）
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Job, size)}
}

func (q *MemoryQueue) Offer(_ context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Take(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *MemoryQueue) Fail(context.Context, Job, string) {}

func (q *MemoryQueue) Backend() string { return "memory" }

// Len 当前排队数
func (q *MemoryQueue) Len() int { return len(q.ch) }

// RedisQueue 基于 Redis 列表，多实例共享；失败任务进入死信队列
type RedisQueue struct {
	list        *redisstore.ListQueue
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewRedisQueue 包装 ListQueue
func NewRedisQueue(list *redisstore.ListQueue, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{list: list, pollTimeout: 2 * time.Second, logger: logger}
}

func (q *RedisQueue) Offer(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.list.Push(ctx, data); err != nil {
		if errors.Is(err, redisstore.ErrQueueFull) {
			return ErrQueueFull
		}
		return err
	}
	return nil
}

func (q *RedisQueue) Take(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		data, err := q.list.Pop(ctx, q.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			q.logger.Error("notify queue pop failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return Job{}, ctx.Err()
			}
			continue
		}
		if data == nil {
			continue
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			q.logger.Warn("malformed notify job, moving to DLQ", zap.Error(err))
			q.deadLetter(ctx, data, "malformed")
			continue
		}
		return job, nil
	}
}

func (q *RedisQueue) Fail(ctx context.Context, job Job, reason string) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	q.deadLetter(ctx, data, reason)
}

func (q *RedisQueue) deadLetter(ctx context.Context, data []byte, reason string) {
	if err := q.list.DeadLetter(context.WithoutCancel(ctx), data, reason); err != nil {
		q.logger.Error("notify dead letter failed", zap.String("reason", reason), zap.Error(err))
	}
}

func (q *RedisQueue) Backend() string { return "redis" }

// Cap 容量
func (q *MemoryQueue) Cap() int { return cap(q.ch) }
