// Package events 定义实时事件信封与发布接口。
// 广播为尽力而为：Publish 不返回错误，订阅方需容忍丢失并定期全量对账。
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// Name 事件名
type Name string

const (
	// SensorUpdate 每条样本都会发出，与是否告警无关
	SensorUpdate Name = "sensor_update"
	// AlertCreated 新建告警（任意级别）
	AlertCreated Name = "alert"
	// EmergencyAlert Critical 告警，额外于 AlertCreated 发出
	EmergencyAlert Name = "emergency_alert"
	// AlertUpdated 任一生命周期变更
	AlertUpdated Name = "alert_updated"
	// EmergencyStatusUpdated Critical 告警被确认或指派
	EmergencyStatusUpdated Name = "emergency_status_updated"
	// EmergencyResolved 告警解决
	EmergencyResolved Name = "emergency_resolved"
	// EmergencyEscalated 超时未确认被升级
	EmergencyEscalated Name = "emergency_escalated"
)

// Event 统一信封
type Event struct {
	ID        string    `json:"id"`
	Name      Name      `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`

	// DeviceID 仅用于分区/路由，不进入信封
	DeviceID coremodel.DeviceID `json:"-"`
}

// New 创建事件，ID 为随机 UUID
func New(name Name, deviceID coremodel.DeviceID, at time.Time, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: at,
		Data:      data,
		DeviceID:  deviceID,
	}
}

// Publisher 事件发布能力（构造时注入）
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Multi 顺序扇出到多个发布者
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder 记录事件，供测试断言
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events 已记录事件的副本
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count 指定名称的事件数
func (r *Recorder) Count(name Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

// Reset 清空
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
