package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueFull 队列已达上限
var ErrQueueFull = errors.New("queue full")

// 长度检查与入队需原子完成
var boundedPush = redis.NewScript(`
local max = tonumber(ARGV[2])
if max > 0 and redis.call('LLEN', KEYS[1]) >= max then
  return -1
end
return redis.call('RPUSH', KEYS[1], ARGV[1])
`)

// ListQueue 基于 Redis List 的有界 FIFO 队列，附带死信队列
type ListQueue struct {
	client *Client
	key    string
	dlqKey string
	maxLen int64
}

// NewListQueue 创建队列；键名为 <name>:queue 与 <name>:dlq。maxLen<=0 表示不限长
func NewListQueue(client *Client, name string, maxLen int64) *ListQueue {
	return &ListQueue{
		client: client,
		key:    name + ":queue",
		dlqKey: name + ":dlq",
		maxLen: maxLen,
	}
}

// Key 主队列键
func (q *ListQueue) Key() string { return q.key }

// Push 右侧入队；超过上限返回 ErrQueueFull
func (q *ListQueue) Push(ctx context.Context, payload []byte) error {
	n, err := boundedPush.Run(ctx, q.client.Client, []string{q.key}, payload, q.maxLen).Int64()
	if err != nil {
		return fmt.Errorf("redis push: %w", err)
	}
	if n < 0 {
		return ErrQueueFull
	}
	return nil
}

// Pop 左侧阻塞出队；超时返回 (nil, nil)
func (q *ListQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// result[0] 是 key，result[1] 是 value
	if len(result) < 2 {
		return nil, fmt.Errorf("invalid blpop result: %v", result)
	}
	return []byte(result[1]), nil
}

// DeadLetter 写入死信队列
func (q *ListQueue) DeadLetter(ctx context.Context, payload []byte, reason string) error {
	rec, err := json.Marshal(map[string]interface{}{
		"payload":   string(payload),
		"reason":    reason,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.dlqKey, rec).Err()
}

// Len 主队列长度
func (q *ListQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// DLQLen 死信队列长度
func (q *ListQueue) DLQLen(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.dlqKey).Result()
}

type deadRecord struct {
	Timestamp int64 `json:"timestamp"`
}

// CleanExpiredDead 从死信队列头部移除早于 now-maxAge 的记录，最多 batch 条。
// 死信按写入顺序排列，遇到未过期记录即停止；无法解析的记录视为过期。
func (q *ListQueue) CleanExpiredDead(ctx context.Context, now time.Time, maxAge time.Duration, batch int) (int64, error) {
	cutoff := now.Add(-maxAge).Unix()
	var cleaned int64
	for i := 0; batch <= 0 || i < batch; i++ {
		head, err := q.client.LIndex(ctx, q.dlqKey, 0).Bytes()
		if errors.Is(err, redis.Nil) {
			return cleaned, nil
		}
		if err != nil {
			return cleaned, err
		}
		var rec deadRecord
		if json.Unmarshal(head, &rec) == nil && rec.Timestamp >= cutoff {
			return cleaned, nil
		}
		// 仅当头部仍是刚读到的记录时移除
		n, err := q.client.LRem(ctx, q.dlqKey, 1, head).Result()
		if err != nil {
			return cleaned, err
		}
		cleaned += n
	}
	return cleaned, nil
}
