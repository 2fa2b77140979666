package events

import (
	"time"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// AlertSummary alert 事件负载
type AlertSummary struct {
	ID           int64                 `json:"id"`
	Type         coremodel.AlertType   `json:"type"`
	Severity     coremodel.Severity    `json:"severity"`
	WorkerName   string                `json:"worker_name"`
	DeviceID     coremodel.DeviceID    `json:"device_id"`
	TriggerValue string                `json:"trigger_value"`
	Timestamp    time.Time             `json:"timestamp"`
	Status       coremodel.AlertStatus `json:"status"`
}

// Summarize 提取告警摘要
func Summarize(a *coremodel.Alert) AlertSummary {
	return AlertSummary{
		ID:           a.ID,
		Type:         a.Type,
		Severity:     a.Severity,
		WorkerName:   a.WorkerName,
		DeviceID:     a.DeviceID,
		TriggerValue: a.TriggerValue,
		Timestamp:    a.CreatedAt,
		Status:       a.Status,
	}
}

// EmergencyPayload emergency_alert 事件负载
type EmergencyPayload struct {
	Alert     coremodel.Alert   `json:"alert"`
	Worker    *coremodel.Worker `json:"worker,omitempty"`
	Latitude  *float64          `json:"latitude,omitempty"`
	Longitude *float64          `json:"longitude,omitempty"`
	Message   string            `json:"message"`
}

// EscalationPayload emergency_escalated 事件负载
type EscalationPayload struct {
	Alert      coremodel.Alert `json:"alert"`
	AgeMs      int64           `json:"age_ms"`
	WorkerName string          `json:"worker_name"`
}

// SensorPayload sensor_update 事件负载
type SensorPayload struct {
	RecordID   int64            `json:"record_id"`
	Sample     coremodel.Sample `json:"sample"`
	WorkerName string           `json:"worker_name"`
	Alerts     int              `json:"alerts_triggered"`
}

// UpdatePayload alert_updated / emergency_status_updated / emergency_resolved 事件负载
type UpdatePayload struct {
	Action string          `json:"action"`
	Alert  coremodel.Alert `json:"alert"`
}
