package rules

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
)

// Thresholds 规则阈值快照（值类型，单次评估内不可变）
type Thresholds struct {
	TemperatureWarning  float64 `yaml:"temperature_warning"`
	TemperatureCritical float64 `yaml:"temperature_critical"`
	GasWarning          float64 `yaml:"gas_warning"`
	GasCritical         float64 `yaml:"gas_critical"`
	FallMagnitude       float64 `yaml:"fall_magnitude"`
	LowBattery          float64 `yaml:"low_battery"`
}

// DefaultThresholds 内置默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureWarning:  40,
		TemperatureCritical: 50,
		GasWarning:          50,
		GasCritical:         100,
		FallMagnitude:       25,
		LowBattery:          20,
	}
}

// FromConfig 由配置生成阈值
func FromConfig(c cfgpkg.ThresholdsConfig) Thresholds {
	return Thresholds{
		TemperatureWarning:  c.TemperatureWarning,
		TemperatureCritical: c.TemperatureCritical,
		GasWarning:          c.GasWarning,
		GasCritical:         c.GasCritical,
		FallMagnitude:       c.FallMagnitude,
		LowBattery:          c.LowBattery,
	}
}

// Validate 两级阈值必须严格递增
func (t Thresholds) Validate() error {
	if t.TemperatureCritical <= t.TemperatureWarning {
		return fmt.Errorf("temperature critical %v must exceed warning %v", t.TemperatureCritical, t.TemperatureWarning)
	}
	if t.GasCritical <= t.GasWarning {
		return fmt.Errorf("gas critical %v must exceed warning %v", t.GasCritical, t.GasWarning)
	}
	if t.FallMagnitude <= 0 {
		return fmt.Errorf("fall magnitude must be positive")
	}
	if t.LowBattery < 0 {
		return fmt.Errorf("low battery must not be negative")
	}
	return nil
}

// LoadThresholds 从 YAML 文件读取阈值；缺失字段沿用 base
func LoadThresholds(path string, base Thresholds) (Thresholds, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read thresholds: %w", err)
	}
	t := base
	if err := yaml.Unmarshal(b, &t); err != nil {
		return base, fmt.Errorf("unmarshal thresholds: %w", err)
	}
	if err := t.Validate(); err != nil {
		return base, err
	}
	return t, nil
}

// ThresholdStore 持有当前阈值快照，支持并发读取与原子替换
type ThresholdStore struct {
	current atomic.Pointer[Thresholds]
}

// NewThresholdStore 创建快照容器
func NewThresholdStore(initial Thresholds) *ThresholdStore {
	s := &ThresholdStore{}
	s.Set(initial)
	return s
}

// Snapshot 返回当前阈值的副本
func (s *ThresholdStore) Snapshot() Thresholds {
	return *s.current.Load()
}

// Set 替换阈值
func (s *ThresholdStore) Set(t Thresholds) {
	s.current.Store(&t)
}
