package app

import (
	"io"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/metrics"
)

// NewPublisher 组合实时推送与可选的 Kafka 导出；返回的 Closer 可能为 nil
func NewPublisher(cfg cfgpkg.KafkaConfig, realtime events.Publisher, logger *zap.Logger, m *metrics.AppMetrics) (events.Publisher, io.Closer) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return realtime, nil
	}
	kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Brokers, cfg.Topic, logger, m), logger, m)
	logger.Info("kafka export enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return events.Multi{realtime, kp}, kp
}
