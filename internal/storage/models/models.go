package models

import (
	"time"

	"gorm.io/datatypes"
)

// 注意：
// - 保持与 internal/migrate/sql 下的建表语句对齐
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Worker 映射 workers 表（由外部人员管理维护）
type Worker struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Worker) TableName() string { return "workers" }

// Device 映射 devices 表
type Device struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID string `gorm:"column:device_id;type:text;not null;uniqueIndex"`
	// 工人绑定由外部设备管理维护
	WorkerID            *int64     `gorm:"column:worker_id"`
	Battery             *float64   `gorm:"column:battery"`
	LastCommunicationAt *time.Time `gorm:"column:last_communication_at"`
	Status              string     `gorm:"column:status;type:text;not null;default:active"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string { return "devices" }

// SensorRecord 映射 sensor_records 表（仅追加）
type SensorRecord struct {
	ID                int64          `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID          string         `gorm:"column:device_id;type:text;not null;index:idx_sensor_device_time,priority:1"`
	RecordedAt        time.Time      `gorm:"column:recorded_at;not null;index:idx_sensor_device_time,priority:2,sort:desc"`
	Temperature       *float64       `gorm:"column:temperature"`
	Humidity          *float64       `gorm:"column:humidity"`
	GasLevel          *float64       `gorm:"column:gas_level"`
	AccelX            *float64       `gorm:"column:accel_x"`
	AccelY            *float64       `gorm:"column:accel_y"`
	AccelZ            *float64       `gorm:"column:accel_z"`
	GyroX             *float64       `gorm:"column:gyro_x"`
	GyroY             *float64       `gorm:"column:gyro_y"`
	GyroZ             *float64       `gorm:"column:gyro_z"`
	Battery           *float64       `gorm:"column:battery"`
	RSSI              *float64       `gorm:"column:rssi"`
	Latitude          *float64       `gorm:"column:latitude"`
	Longitude         *float64       `gorm:"column:longitude"`
	EmergencyButton   bool           `gorm:"column:emergency_button;not null;default:false"`
	VoiceCommand      *string        `gorm:"column:voice_command;type:text"`
	VoiceCommandID    *string        `gorm:"column:voice_command_id;type:text"`
	VoiceAlert        bool           `gorm:"column:voice_alert;not null;default:false"`
	AlertType         *string        `gorm:"column:alert_type;type:text"`
	GeofenceViolation bool           `gorm:"column:geofence_violation;not null;default:false"`
	Raw               datatypes.JSON `gorm:"column:raw;type:jsonb"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (SensorRecord) TableName() string { return "sensor_records" }

// Alert 映射 alerts 表
type Alert struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Type           string     `gorm:"column:type;type:text;not null"`
	Severity       string     `gorm:"column:severity;type:text;not null"`
	DeviceID       string     `gorm:"column:device_id;type:text;not null;index"`
	WorkerID       *int64     `gorm:"column:worker_id"`
	TriggerValue   string     `gorm:"column:trigger_value;type:text;not null"`
	Threshold      string     `gorm:"column:threshold;type:text;not null;default:''"`
	Status         string     `gorm:"column:status;type:text;not null;index:idx_alerts_escalation,priority:1"`
	Priority       string     `gorm:"column:priority;type:text;not null"`
	AssignedTo     *string    `gorm:"column:assigned_to;type:text"`
	AcknowledgedBy *string    `gorm:"column:acknowledged_by;type:text"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at"`
	ResponseTimeMs *int64     `gorm:"column:response_time_ms"`
	Escalated      bool       `gorm:"column:escalated;not null;default:false;index:idx_alerts_escalation,priority:2"`
	EscalatedAt    *time.Time `gorm:"column:escalated_at"`
	Notes          string     `gorm:"column:notes;type:text;not null;default:''"`
	Archived       bool       `gorm:"column:archived;not null;default:false"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`

	// WorkerName 来自 workers 联表查询，只读
	WorkerName *string `gorm:"column:worker_name;->;-:migration"`
}

func (Alert) TableName() string { return "alerts" }

// EmergencyContact 映射 emergency_contacts 表
type EmergencyContact struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Email     string    `gorm:"column:email;type:text;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EmergencyContact) TableName() string { return "emergency_contacts" }

// PushSubscription 映射 push_subscriptions 表
type PushSubscription struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Endpoint  string    `gorm:"column:endpoint;type:text;not null;uniqueIndex"`
	P256dh    string    `gorm:"column:p256dh;type:text;not null"`
	Auth      string    `gorm:"column:auth;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PushSubscription) TableName() string { return "push_subscriptions" }
