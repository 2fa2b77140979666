package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// VoiceEntry 语音分类 -> 告警类别与级别
type VoiceEntry struct {
	Type     coremodel.AlertType `yaml:"type"`
	Severity coremodel.Severity  `yaml:"severity"`
}

// VoiceTable 语音分类表
type VoiceTable struct {
	Map map[string]VoiceEntry `yaml:"map"`
}

// DefaultVoiceTable 返回内置语音分类表
func DefaultVoiceTable() *VoiceTable {
	return &VoiceTable{
		Map: map[string]VoiceEntry{
			"help":          {Type: coremodel.AlertTypeVoiceHelp, Severity: coremodel.SeverityCritical},
			"emergency":     {Type: coremodel.AlertTypeVoiceEmergency, Severity: coremodel.SeverityCritical},
			"fall":          {Type: coremodel.AlertTypeVoiceFall, Severity: coremodel.SeverityCritical},
			"shock":         {Type: coremodel.AlertTypeVoiceFall, Severity: coremodel.SeverityCritical},
			"fall_or_shock": {Type: coremodel.AlertTypeVoiceFall, Severity: coremodel.SeverityCritical},
			"call_nurse":    {Type: coremodel.AlertTypeVoiceNurse, Severity: coremodel.SeverityHigh},
			"pain":          {Type: coremodel.AlertTypeVoicePain, Severity: coremodel.SeverityHigh},
		},
	}
}

// LoadVoiceTable 从 YAML 加载语音分类表，并与默认表合并（文件优先）
func LoadVoiceTable(path string) (*VoiceTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice table: %w", err)
	}
	var loaded VoiceTable
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return nil, fmt.Errorf("unmarshal voice table: %w", err)
	}
	t := DefaultVoiceTable()
	for code, e := range loaded.Map {
		if !e.Severity.Valid() {
			return nil, fmt.Errorf("voice table: code %q has invalid severity %q", code, e.Severity)
		}
		t.Map[NormalizeVoiceCode(code)] = e
	}
	return t, nil
}

// Lookup 查找分类；未知分类返回 false
func (t *VoiceTable) Lookup(code string) (VoiceEntry, bool) {
	if t == nil || t.Map == nil {
		return VoiceEntry{}, false
	}
	e, ok := t.Map[NormalizeVoiceCode(code)]
	return e, ok
}

// NormalizeVoiceCode 统一大小写与分隔符："Call-Nurse" -> "call_nurse"
func NormalizeVoiceCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.NewReplacer("-", "_", " ", "_").Replace(code)
}
