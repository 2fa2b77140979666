package health

import (
	"context"
	"time"
)

// ConnectionState 可报告连接状态的组件（MQTT 绑定）
type ConnectionState interface {
	IsConnected() bool
}

// MQTTChecker 断线时 HTTP 接入仍可用，记为 degraded
type MQTTChecker struct {
	conn ConnectionState
}

func NewMQTTChecker(conn ConnectionState) *MQTTChecker {
	return &MQTTChecker{conn: conn}
}

func (c *MQTTChecker) Name() string { return "mqtt" }

func (c *MQTTChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	if c.conn == nil || !c.conn.IsConnected() {
		return CheckResult{Status: StatusDegraded, Message: "broker disconnected", Latency: time.Since(start)}
	}
	return CheckResult{Status: StatusHealthy, Message: "connected", Latency: time.Since(start)}
}
