package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/metrics"
)

// MessageWriter kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 将生命周期事件镜像到 Kafka，供外部审计/报表消费。
// sensor_update 量大且无审计价值，不导出。
type KafkaPublisher struct {
	writer  MessageWriter
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

// NewKafkaWriter 按设备分区的异步 writer；投递结果经 Completion 回调记录
func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger, m *metrics.AppMetrics) *kafka.Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			for range msgs {
				m.Exported(err)
			}
			if err != nil {
				logger.Warn("kafka export failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
}

// NewKafkaPublisher 包装 writer
func NewKafkaPublisher(w MessageWriter, logger *zap.Logger, m *metrics.AppMetrics) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, logger: logger, metrics: m}
}

// Publish 序列化后写入；writer 为异步模式时不阻塞调用方
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.Name == SensorUpdate {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal event for kafka", zap.String("event", string(ev.Name)), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.DeviceID),
		Value: b,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Name)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	// 事件导出不跟随请求生命周期
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.metrics.Exported(err)
		p.logger.Warn("kafka write failed", zap.String("event", string(ev.Name)), zap.Error(err))
	}
}

// Close 刷新缓冲并关闭
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
