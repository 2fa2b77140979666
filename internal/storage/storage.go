package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition 当前状态不允许该操作（条件更新未命中）
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SampleRepo 遥测样本（仅追加）
type SampleRepo interface {
	// AppendSample 写入一条样本并返回记录 ID
	AppendSample(ctx context.Context, s coremodel.Sample) (int64, error)
}

// DeviceRepo 设备心跳与工人关联
type DeviceRepo interface {
	// TouchDevice 不存在则创建；刷新 last_communication_at，battery 为 nil 时保持原值
	TouchDevice(ctx context.Context, id coremodel.DeviceID, at time.Time, battery *float64) (*coremodel.Device, error)
	GetDevice(ctx context.Context, id coremodel.DeviceID) (*coremodel.Device, error)
	GetWorker(ctx context.Context, id int64) (*coremodel.Worker, error)
}

// AlertRepo 告警持久化。
// 所有返回的 Alert 均已解析 WorkerName。
type AlertRepo interface {
	CreateAlert(ctx context.Context, a *coremodel.Alert) error
	GetAlert(ctx context.Context, id int64) (*coremodel.Alert, error)
	ListAlerts(ctx context.Context, f coremodel.AlertFilter) ([]coremodel.Alert, error)

	// ListEscalationCandidates 返回 status=Pending 且 escalated=false 的告警（含已归档）
	ListEscalationCandidates(ctx context.Context) ([]coremodel.Alert, error)
	// MarkEscalated 条件更新：仅当 status=Pending 且 escalated=false 时置位，返回是否命中
	MarkEscalated(ctx context.Context, id int64, at time.Time) (bool, error)

	// AcknowledgeAlert 条件更新：仅 Pending/Responding 可确认；notes 为 nil 时保持原值
	AcknowledgeAlert(ctx context.Context, id int64, by string, at time.Time, notes *string) (*coremodel.Alert, error)
	AssignAlert(ctx context.Context, id int64, assignee string, at time.Time) (*coremodel.Alert, error)
	UpdateNotes(ctx context.Context, id int64, notes string, at time.Time) (*coremodel.Alert, error)
	// ResolveAlert 条件更新：非 Resolved 均可解决
	ResolveAlert(ctx context.Context, id int64, at time.Time, notes *string) (*coremodel.Alert, error)
	ArchiveAlert(ctx context.Context, id int64, at time.Time) (*coremodel.Alert, error)
}

// ContactRepo 外部维护的通知对象（只读）
type ContactRepo interface {
	ListEmergencyContacts(ctx context.Context) ([]coremodel.EmergencyContact, error)
	ListPushSubscriptions(ctx context.Context) ([]coremodel.PushSubscription, error)
}

// Repository 聚合全部存储能力
type Repository interface {
	SampleRepo
	DeviceRepo
	AlertRepo
	ContactRepo
}
