package coremodel

import (
	"math"
	"time"
)

// DeviceID 统一设备标识类型
type DeviceID string

// UnknownWorkerName 设备未绑定工人时的展示名（非错误）
const UnknownWorkerName = "Unknown Worker"

// Severity 告警严重级别
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Valid 是否为已知级别
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// DefaultPriority 未显式指定优先级时按严重级别推导
func (s Severity) DefaultPriority() Priority {
	switch s {
	case SeverityCritical:
		return PriorityUrgent
	case SeverityHigh:
		return PriorityHigh
	case SeverityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Priority 处置优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// AlertStatus 告警生命周期状态
// 单向流转：Pending -> Acknowledged -> Resolved（终态）。
// Responding 为保留状态：枚举存在，但当前没有任何操作会进入该状态。
type AlertStatus string

const (
	StatusPending      AlertStatus = "Pending"
	StatusAcknowledged AlertStatus = "Acknowledged"
	StatusResponding   AlertStatus = "Responding"
	StatusResolved     AlertStatus = "Resolved"
)

// Valid 是否为已知状态
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusResponding, StatusResolved:
		return true
	}
	return false
}

// CanAcknowledge 是否允许确认（不允许回退，不重复计算响应时长）
func (s AlertStatus) CanAcknowledge() bool {
	return s == StatusPending || s == StatusResponding
}

// CanResolve 是否允许解决；不强制先确认
func (s AlertStatus) CanResolve() bool {
	return s != StatusResolved
}

// AlertType 检测类别
type AlertType string

const (
	AlertTypeEmergencyButton AlertType = "Emergency Button"
	AlertTypeHighTemperature AlertType = "High Temperature"
	AlertTypeGasLeak         AlertType = "Gas Leak"
	AlertTypeFallDetected    AlertType = "Fall Detected"
	AlertTypeLowBattery      AlertType = "Low Battery"
	AlertTypeVoiceHelp       AlertType = "Voice Help Request"
	AlertTypeVoiceEmergency  AlertType = "Voice Emergency"
	AlertTypeVoiceFall       AlertType = "Voice Fall or Shock"
	AlertTypeVoiceNurse      AlertType = "Voice Call Nurse"
	AlertTypeVoicePain       AlertType = "Voice Pain Report"
)

// Vector3 三轴向量（加速度/陀螺仪）
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude 欧氏模长
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample 归一化后的遥测样本（写入后不可变）
type Sample struct {
	DeviceID          DeviceID       `json:"device_id"`
	Timestamp         time.Time      `json:"timestamp"`
	Temperature       *float64       `json:"temperature,omitempty"`
	Humidity          *float64       `json:"humidity,omitempty"`
	GasLevel          *float64       `json:"gas_level,omitempty"`
	Accel             *Vector3       `json:"accel,omitempty"`
	Gyro              *Vector3       `json:"gyro,omitempty"`
	Battery           *float64       `json:"battery,omitempty"`
	RSSI              *float64       `json:"rssi,omitempty"`
	Latitude          *float64       `json:"latitude,omitempty"`
	Longitude         *float64       `json:"longitude,omitempty"`
	EmergencyButton   bool           `json:"emergency_button"`
	VoiceCommand      string         `json:"voice_command,omitempty"`
	VoiceCommandID    string         `json:"voice_command_id,omitempty"`
	VoiceAlert        bool           `json:"voice_alert"`
	AlertType         string         `json:"alert_type,omitempty"`
	GeofenceViolation bool           `json:"geofence_violation"`
	Raw               map[string]any `json:"-"`
}

// Worker 佩戴设备的工人
type Worker struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DisplayName 解析后的展示名；nil 视为未知工人
func (w *Worker) DisplayName() string {
	if w == nil || w.Name == "" {
		return UnknownWorkerName
	}
	return w.Name
}

// Device 设备状态（电量与最近通信时间仅由网关写入）
type Device struct {
	DeviceID            DeviceID   `json:"device_id"`
	WorkerID            *int64     `json:"worker_id,omitempty"`
	Battery             *float64   `json:"battery,omitempty"`
	LastCommunicationAt *time.Time `json:"last_communication_at,omitempty"`
	Status              string     `json:"status"`
}

// AlertRequest 规则引擎输出的建单请求
type AlertRequest struct {
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	DeviceID     DeviceID  `json:"device_id"`
	WorkerID     *int64    `json:"worker_id,omitempty"`
	TriggerValue string    `json:"trigger_value"`
	Threshold    string    `json:"threshold,omitempty"`
	Priority     Priority  `json:"priority,omitempty"`
	// Rule 命中的规则名，仅用于诊断
	Rule string `json:"-"`
}

// Alert 告警记录
type Alert struct {
	ID             int64       `json:"id"`
	Type           AlertType   `json:"type"`
	Severity       Severity    `json:"severity"`
	DeviceID       DeviceID    `json:"device_id"`
	WorkerID       *int64      `json:"worker_id"`
	WorkerName     string      `json:"worker_name"`
	TriggerValue   string      `json:"trigger_value"`
	Threshold      string      `json:"threshold"`
	Status         AlertStatus `json:"status"`
	Priority       Priority    `json:"priority"`
	AssignedTo     *string     `json:"assigned_to"`
	AcknowledgedBy *string     `json:"acknowledged_by"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at"`
	ResolvedAt     *time.Time  `json:"resolved_at"`
	ResponseTimeMs *int64      `json:"response_time_ms"`
	Escalated      bool        `json:"escalated"`
	EscalatedAt    *time.Time  `json:"escalated_at"`
	Notes          string      `json:"notes"`
	Archived       bool        `json:"archived"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// AlertFilter 告警列表查询条件
type AlertFilter struct {
	Status          AlertStatus
	Severity        Severity
	DeviceID        DeviceID
	IncludeArchived bool
	Limit           int
	Offset          int
}

// EmergencyContact 紧急联系人（由外部 CRUD 维护）
type EmergencyContact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PushSubscription Web Push 订阅（由外部 CRUD 维护）
type PushSubscription struct {
	ID       int64  `json:"id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}
