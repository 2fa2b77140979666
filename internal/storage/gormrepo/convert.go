package gormrepo

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/storage/models"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toSensorRecord(s coremodel.Sample) (*models.SensorRecord, error) {
	rec := &models.SensorRecord{
		DeviceID:          string(s.DeviceID),
		RecordedAt:        s.Timestamp,
		Temperature:       s.Temperature,
		Humidity:          s.Humidity,
		GasLevel:          s.GasLevel,
		Battery:           s.Battery,
		RSSI:              s.RSSI,
		Latitude:          s.Latitude,
		Longitude:         s.Longitude,
		EmergencyButton:   s.EmergencyButton,
		VoiceCommand:      strPtr(s.VoiceCommand),
		VoiceCommandID:    strPtr(s.VoiceCommandID),
		VoiceAlert:        s.VoiceAlert,
		AlertType:         strPtr(s.AlertType),
		GeofenceViolation: s.GeofenceViolation,
	}
	if s.Accel != nil {
		rec.AccelX, rec.AccelY, rec.AccelZ = &s.Accel.X, &s.Accel.Y, &s.Accel.Z
	}
	if s.Gyro != nil {
		rec.GyroX, rec.GyroY, rec.GyroZ = &s.Gyro.X, &s.Gyro.Y, &s.Gyro.Z
	}
	if s.Raw != nil {
		b, err := json.Marshal(s.Raw)
		if err != nil {
			return nil, err
		}
		rec.Raw = datatypes.JSON(b)
	}
	return rec, nil
}

func toDevice(m *models.Device) *coremodel.Device {
	return &coremodel.Device{
		DeviceID:            coremodel.DeviceID(m.DeviceID),
		WorkerID:            m.WorkerID,
		Battery:             m.Battery,
		LastCommunicationAt: m.LastCommunicationAt,
		Status:              m.Status,
	}
}

func fromAlert(a *coremodel.Alert) *models.Alert {
	return &models.Alert{
		ID:             a.ID,
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		DeviceID:       string(a.DeviceID),
		WorkerID:       a.WorkerID,
		TriggerValue:   a.TriggerValue,
		Threshold:      a.Threshold,
		Status:         string(a.Status),
		Priority:       string(a.Priority),
		AssignedTo:     a.AssignedTo,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
		ResolvedAt:     a.ResolvedAt,
		ResponseTimeMs: a.ResponseTimeMs,
		Escalated:      a.Escalated,
		EscalatedAt:    a.EscalatedAt,
		Notes:          a.Notes,
		Archived:       a.Archived,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAlert(m *models.Alert) *coremodel.Alert {
	name := deref(m.WorkerName)
	if m.WorkerID == nil || name == "" {
		name = coremodel.UnknownWorkerName
	}
	return &coremodel.Alert{
		ID:             m.ID,
		Type:           coremodel.AlertType(m.Type),
		Severity:       coremodel.Severity(m.Severity),
		DeviceID:       coremodel.DeviceID(m.DeviceID),
		WorkerID:       m.WorkerID,
		WorkerName:     name,
		TriggerValue:   m.TriggerValue,
		Threshold:      m.Threshold,
		Status:         coremodel.AlertStatus(m.Status),
		Priority:       coremodel.Priority(m.Priority),
		AssignedTo:     m.AssignedTo,
		AcknowledgedBy: m.AcknowledgedBy,
		AcknowledgedAt: m.AcknowledgedAt,
		ResolvedAt:     m.ResolvedAt,
		ResponseTimeMs: m.ResponseTimeMs,
		Escalated:      m.Escalated,
		EscalatedAt:    m.EscalatedAt,
		Notes:          m.Notes,
		Archived:       m.Archived,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
