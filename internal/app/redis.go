package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/notify"
	redisstorage "github.com/taoyao-code/worker-safety/internal/storage/redis"
)

// notifyQueueName Redis 通知队列键前缀
const notifyQueueName = "safety:notify"

// NewRedisClient 未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}
	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))
	return client, nil
}

// NewNotifyQueue 按配置选择通知队列后端；redis 模式同时返回底层 ListQueue 供死信清理
func NewNotifyQueue(cfg cfgpkg.NotifyConfig, client *redisstorage.Client, logger *zap.Logger) (notify.Queue, *redisstorage.ListQueue) {
	if cfg.Queue == "redis" && client != nil {
		list := redisstorage.NewListQueue(client, notifyQueueName, int64(cfg.QueueSize))
		return notify.NewRedisQueue(list, logger), list
	}
	return notify.NewMemoryQueue(cfg.QueueSize), nil
}
