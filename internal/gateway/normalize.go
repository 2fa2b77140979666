package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// ValidationError 载荷不合法（HTTP 映射为 400）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalize 将原始载荷转换为样本。
// 只有 device_id 是必填项；可选字段类型不符时按缺失处理。
func Normalize(raw map[string]any, now time.Time) (coremodel.Sample, error) {
	id, err := deviceID(raw["device_id"])
	if err != nil {
		return coremodel.Sample{}, err
	}

	s := coremodel.Sample{
		DeviceID:          id,
		Timestamp:         timestamp(raw["timestamp"], now),
		Temperature:       number(raw["temperature"]),
		Humidity:          number(raw["humidity"]),
		GasLevel:          number(raw["gas_level"]),
		Accel:             vector(raw, "accel"),
		Gyro:              vector(raw, "gyro"),
		Battery:           number(raw["battery"]),
		RSSI:              number(raw["rssi"]),
		Latitude:          number(raw["latitude"]),
		Longitude:         number(raw["longitude"]),
		EmergencyButton:   boolean(raw["emergency_button"]),
		VoiceCommand:      text(raw["voice_command"]),
		VoiceCommandID:    text(raw["voice_command_id"]),
		VoiceAlert:        boolean(raw["voice_alert"]),
		AlertType:         text(raw["alert_type"]),
		GeofenceViolation: boolean(raw["geofence_violation"]),
		Raw:               raw,
	}
	return s, nil
}

func deviceID(v any) (coremodel.DeviceID, error) {
	switch x := v.(type) {
	case nil:
		return "", &ValidationError{Field: "device_id", Reason: "required"}
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return "", &ValidationError{Field: "device_id", Reason: "required"}
		}
		return coremodel.DeviceID(x), nil
	case json.Number:
		return coremodel.DeviceID(x.String()), nil
	case float64:
		return coremodel.DeviceID(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case int:
		return coremodel.DeviceID(strconv.Itoa(x)), nil
	case int64:
		return coremodel.DeviceID(strconv.FormatInt(x, 10)), nil
	default:
		return "", &ValidationError{Field: "device_id", Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func number(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func boolean(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		if n := number(v); n != nil {
			return *n != 0
		}
	}
	return false
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

// vector 三轴任一存在即构造向量，缺失轴记 0
func vector(raw map[string]any, prefix string) *coremodel.Vector3 {
	x := number(raw[prefix+"_x"])
	y := number(raw[prefix+"_y"])
	z := number(raw[prefix+"_z"])
	if x == nil && y == nil && z == nil {
		return nil
	}
	v := &coremodel.Vector3{}
	if x != nil {
		v.X = *x
	}
	if y != nil {
		v.Y = *y
	}
	if z != nil {
		v.Z = *z
	}
	return v
}

// timestamp 支持 RFC3339 与 Unix 秒/毫秒；缺失或无法解析时使用接收时间
func timestamp(v any, now time.Time) time.Time {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	n := number(v)
	if n == nil || *n <= 0 {
		return now
	}
	// 大于 1e12 视为毫秒
	if *n > 1e12 {
		return time.UnixMilli(int64(*n)).UTC()
	}
	return time.Unix(int64(*n), 0).UTC()
}
