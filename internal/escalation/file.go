package escalation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// deadlinesFile 阈值文件中的 escalation_deadlines 段
type deadlinesFile struct {
	Deadlines struct {
		Critical time.Duration `yaml:"critical"`
		High     time.Duration `yaml:"high"`
		Medium   time.Duration `yaml:"medium"`
		Low      time.Duration `yaml:"low"`
	} `yaml:"escalation_deadlines"`
}

// LoadDeadlines 从阈值文件读取升级时限，缺失或 <=0 的级别沿用 base
func LoadDeadlines(path string, base Deadlines) (Deadlines, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read deadlines: %w", err)
	}
	var f deadlinesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return base, fmt.Errorf("unmarshal deadlines: %w", err)
	}
	d := base
	if f.Deadlines.Critical > 0 {
		d.Critical = f.Deadlines.Critical
	}
	if f.Deadlines.High > 0 {
		d.High = f.Deadlines.High
	}
	if f.Deadlines.Medium > 0 {
		d.Medium = f.Deadlines.Medium
	}
	if f.Deadlines.Low > 0 {
		d.Low = f.Deadlines.Low
	}
	return d, nil
}
