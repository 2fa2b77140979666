package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/metrics"
)

// Ingester 样本接入入口（*Gateway 实现）
type Ingester interface {
	Ingest(ctx context.Context, raw map[string]any, transport string) (IngestResult, error)
}

// MQTTBinding 订阅设备遥测主题：
//
//	<prefix>/sensors/<device_id>    常规样本
//	<prefix>/emergency/<device_id>  紧急按钮（强制 emergency_button=true）
//
// MQTT 没有回复通道，处理失败只记录日志并丢弃。
type MQTTBinding struct {
	cfg      cfgpkg.MQTTConfig
	ingester Ingester
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
	client   mqtt.Client
}

// NewMQTTBinding 创建绑定（不连接）
func NewMQTTBinding(cfg cfgpkg.MQTTConfig, ing Ingester, logger *zap.Logger, m *metrics.AppMetrics) *MQTTBinding {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &MQTTBinding{cfg: cfg, ingester: ing, logger: logger, metrics: m}
	b.client = mqtt.NewClient(b.clientOptions())
	return b
}

func (b *MQTTBinding) sensorTopic() string    { return b.cfg.TopicPrefix + "/sensors/+" }
func (b *MQTTBinding) emergencyTopic() string { return b.cfg.TopicPrefix + "/emergency/+" }

func (b *MQTTBinding) clientOptions() *mqtt.ClientOptions {
	// 配置了 client id 视为稳定身份，使用持久会话接收离线期间的 QoS>0 消息；
	// 未配置时用随机 id + clean session，重启不在 broker 上遗留会话
	clientID, persistent := b.cfg.ClientID, b.cfg.ClientID != ""
	if !persistent {
		clientID = "worker-safety-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetCleanSession(!persistent).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
	}
	if b.cfg.Password != "" {
		opts.SetPassword(b.cfg.Password)
	}

	// 重连后重新订阅
	opts.OnConnect = func(c mqtt.Client) {
		b.metrics.SetMQTTConnected(true)
		b.logger.Info("mqtt connected", zap.String("broker", b.cfg.BrokerURL))
		filters := map[string]byte{
			b.sensorTopic():    b.cfg.QoS,
			b.emergencyTopic(): b.cfg.QoS,
		}
		if token := c.SubscribeMultiple(filters, b.onMessage); token.Wait() && token.Error() != nil {
			b.logger.Error("mqtt subscribe failed", zap.Error(token.Error()))
			return
		}
		b.logger.Info("mqtt subscribed",
			zap.String("sensors", b.sensorTopic()),
			zap.String("emergency", b.emergencyTopic()),
			zap.Uint8("qos", b.cfg.QoS))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.metrics.SetMQTTConnected(false)
		b.logger.Warn("mqtt connection lost", zap.Error(err))
	}
	return opts
}

// Start 指数退避连接，直到成功或 ctx 取消
func (b *MQTTBinding) Start(ctx context.Context) error {
	backoff := b.cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := b.cfg.MaxBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	for {
		token := b.client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		b.logger.Warn("mqtt connect failed", zap.Error(token.Error()), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop 退订并断开
func (b *MQTTBinding) Stop() {
	if !b.client.IsConnected() {
		return
	}
	if token := b.client.Unsubscribe(b.sensorTopic(), b.emergencyTopic()); token.WaitTimeout(2*time.Second) && token.Error() != nil {
		b.logger.Warn("mqtt unsubscribe failed", zap.Error(token.Error()))
	}
	b.client.Disconnect(250)
	b.metrics.SetMQTTConnected(false)
}

// IsConnected 健康检查使用
func (b *MQTTBinding) IsConnected() bool {
	return b.client.IsConnected()
}

func (b *MQTTBinding) onMessage(_ mqtt.Client, msg mqtt.Message) {
	b.HandleMessage(context.Background(), msg.Topic(), msg.Payload())
}

// HandleMessage 处理单条消息；错误仅记录
func (b *MQTTBinding) HandleMessage(ctx context.Context, topic string, payload []byte) {
	raw, err := b.decode(topic, payload)
	if err != nil {
		b.logger.Warn("mqtt message dropped", zap.String("topic", topic), zap.Error(err))
		return
	}

	res, err := b.ingester.Ingest(ctx, raw, TransportMQTT)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			b.logger.Warn("mqtt sample rejected", zap.String("topic", topic), zap.Error(err))
			return
		}
		b.logger.Error("mqtt ingest failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	b.logger.Debug("mqtt sample ingested",
		zap.String("topic", topic),
		zap.Int64("record_id", res.RecordID),
		zap.Int("alerts", res.AlertsTriggered))
}

// decode 解析 JSON 并按主题补全 device_id / emergency_button
func (b *MQTTBinding) decode(topic string, payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode payload: not an object")
	}

	kind, id, ok := b.parseTopic(topic)
	if !ok {
		return nil, fmt.Errorf("unexpected topic %q", topic)
	}
	if v, present := raw["device_id"]; !present || v == nil || v == "" {
		raw["device_id"] = id
	}
	if kind == "emergency" {
		raw["emergency_button"] = true
	}
	return raw, nil
}

// parseTopic 返回 (sensors|emergency, 设备号)
func (b *MQTTBinding) parseTopic(topic string) (string, string, bool) {
	rest, ok := strings.CutPrefix(topic, b.cfg.TopicPrefix+"/")
	if !ok {
		return "", "", false
	}
	kind, id, ok := strings.Cut(rest, "/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	if kind != "sensors" && kind != "emergency" {
		return "", "", false
	}
	return kind, id, true
}
