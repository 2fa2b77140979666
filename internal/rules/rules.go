// Package rules 实现无状态的告警规则评估。
// 每条规则是独立的纯函数，规则之间互不抑制；同一样本可命中多条规则。
package rules

import (
	"fmt"
	"strconv"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// Input 单次评估的输入
type Input struct {
	Sample     coremodel.Sample
	Device     *coremodel.Device
	Worker     *coremodel.Worker
	Thresholds Thresholds
	Voice      *VoiceTable
}

// Rule 命名的纯函数规则
type Rule struct {
	Name  string
	Apply func(in Input) (coremodel.AlertRequest, bool)
}

// Default 默认规则列表（顺序即输出顺序）
func Default() []Rule {
	return []Rule{
		{Name: "emergency_button", Apply: emergencyButton},
		{Name: "voice_command", Apply: voiceCommand},
		{Name: "temperature", Apply: temperature},
		{Name: "gas_level", Apply: gasLevel},
		{Name: "fall_detection", Apply: fallDetection},
		{Name: "low_battery", Apply: lowBattery},
	}
}

// Evaluator 规则评估器，可并发使用
type Evaluator struct {
	rules []Rule
	voice *VoiceTable
}

// NewEvaluator 创建评估器；rules 为空时使用 Default()，voice 为空时使用内置表
func NewEvaluator(rules []Rule, voice *VoiceTable) *Evaluator {
	if len(rules) == 0 {
		rules = Default()
	}
	if voice == nil {
		voice = DefaultVoiceTable()
	}
	return &Evaluator{rules: rules, voice: voice}
}

// Evaluate 返回零或多个建单请求
func (e *Evaluator) Evaluate(sample coremodel.Sample, device *coremodel.Device, worker *coremodel.Worker, t Thresholds) []coremodel.AlertRequest {
	reqs, _ := e.EvaluateTrace(sample, device, worker, t)
	return reqs
}

// EvaluateTrace 同 Evaluate，并返回命中的规则名
func (e *Evaluator) EvaluateTrace(sample coremodel.Sample, device *coremodel.Device, worker *coremodel.Worker, t Thresholds) ([]coremodel.AlertRequest, []string) {
	in := Input{Sample: sample, Device: device, Worker: worker, Thresholds: t, Voice: e.voice}

	var workerID *int64
	if worker != nil {
		id := worker.ID
		workerID = &id
	}

	var (
		out   []coremodel.AlertRequest
		fired []string
	)
	for _, r := range e.rules {
		req, ok := r.Apply(in)
		if !ok {
			continue
		}
		req.DeviceID = sample.DeviceID
		req.WorkerID = workerID
		req.Rule = r.Name
		out = append(out, req)
		fired = append(fired, r.Name)
	}
	return out, fired
}

func emergencyButton(in Input) (coremodel.AlertRequest, bool) {
	if !in.Sample.EmergencyButton {
		return coremodel.AlertRequest{}, false
	}
	return coremodel.AlertRequest{
		Type:         coremodel.AlertTypeEmergencyButton,
		Severity:     coremodel.SeverityCritical,
		TriggerValue: "Button Pressed",
	}, true
}

// voiceCommand 分类码优先取 alert_type，其次 voice_command_id；未知分类静默忽略
func voiceCommand(in Input) (coremodel.AlertRequest, bool) {
	code := in.Sample.AlertType
	if code == "" {
		code = in.Sample.VoiceCommandID
	}
	if code == "" {
		return coremodel.AlertRequest{}, false
	}
	entry, ok := in.Voice.Lookup(code)
	if !ok {
		return coremodel.AlertRequest{}, false
	}
	trigger := in.Sample.VoiceCommand
	if trigger == "" {
		trigger = NormalizeVoiceCode(code)
	}
	return coremodel.AlertRequest{
		Type:         entry.Type,
		Severity:     entry.Severity,
		TriggerValue: trigger,
	}, true
}

func temperature(in Input) (coremodel.AlertRequest, bool) {
	return twoTier(in.Sample.Temperature, in.Thresholds.TemperatureCritical, in.Thresholds.TemperatureWarning,
		coremodel.AlertTypeHighTemperature, "°C")
}

func gasLevel(in Input) (coremodel.AlertRequest, bool) {
	return twoTier(in.Sample.GasLevel, in.Thresholds.GasCritical, in.Thresholds.GasWarning,
		coremodel.AlertTypeGasLeak, " ppm")
}

// twoTier 先判 Critical，命中则不再判 High
func twoTier(v *float64, critical, warning float64, typ coremodel.AlertType, unit string) (coremodel.AlertRequest, bool) {
	if v == nil {
		return coremodel.AlertRequest{}, false
	}
	switch {
	case *v >= critical:
		return coremodel.AlertRequest{
			Type:         typ,
			Severity:     coremodel.SeverityCritical,
			TriggerValue: FormatNumber(*v) + unit,
			Threshold:    FormatNumber(critical) + unit,
		}, true
	case *v >= warning:
		return coremodel.AlertRequest{
			Type:         typ,
			Severity:     coremodel.SeverityHigh,
			TriggerValue: FormatNumber(*v) + unit,
			Threshold:    FormatNumber(warning) + unit,
		}, true
	}
	return coremodel.AlertRequest{}, false
}

func fallDetection(in Input) (coremodel.AlertRequest, bool) {
	if in.Sample.Accel == nil {
		return coremodel.AlertRequest{}, false
	}
	m := in.Sample.Accel.Magnitude()
	if m < in.Thresholds.FallMagnitude {
		return coremodel.AlertRequest{}, false
	}
	return coremodel.AlertRequest{
		Type:         coremodel.AlertTypeFallDetected,
		Severity:     coremodel.SeverityCritical,
		TriggerValue: fmt.Sprintf("%.2f m/s²", m),
		Threshold:    FormatNumber(in.Thresholds.FallMagnitude) + " m/s²",
	}, true
}

func lowBattery(in Input) (coremodel.AlertRequest, bool) {
	b := in.Sample.Battery
	if b == nil || *b > in.Thresholds.LowBattery {
		return coremodel.AlertRequest{}, false
	}
	return coremodel.AlertRequest{
		Type:         coremodel.AlertTypeLowBattery,
		Severity:     coremodel.SeverityMedium,
		TriggerValue: FormatNumber(*b) + "%",
		Threshold:    FormatNumber(in.Thresholds.LowBattery) + "%",
	}, true
}

// FormatNumber 最短表示：55 -> "55"，55.5 -> "55.5"
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
