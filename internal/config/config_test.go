package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "app:\n  env: test\n")

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Escalation.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Escalation.Deadlines.Critical)
	assert.Equal(t, 5*time.Minute, cfg.Escalation.Deadlines.High)
	assert.Equal(t, 10*time.Minute, cfg.Escalation.Deadlines.Medium)
	assert.Equal(t, 15*time.Minute, cfg.Escalation.Deadlines.Low)
	assert.Equal(t, 40.0, cfg.Rules.Thresholds.TemperatureWarning)
	assert.Equal(t, 50.0, cfg.Rules.Thresholds.TemperatureCritical)
	assert.Equal(t, 20.0, cfg.Rules.Thresholds.LowBattery)
	assert.Equal(t, "memory", cfg.Notify.Queue)
	assert.Equal(t, "safety", cfg.MQTT.TopicPrefix)
}

func TestLoad_FileOverrides(t *testing.T) {
	p := writeConfig(t, `
rules:
  thresholds:
    temperatureWarning: 35
    temperatureCritical: 45
escalation:
  interval: 10s
  deadlines:
    critical: 1m
notify:
  queue: redis
redis:
  enabled: true
  addr: redis:6379
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 35.0, cfg.Rules.Thresholds.TemperatureWarning)
	assert.Equal(t, 45.0, cfg.Rules.Thresholds.TemperatureCritical)
	assert.Equal(t, 10*time.Second, cfg.Escalation.Interval)
	assert.Equal(t, time.Minute, cfg.Escalation.Deadlines.Critical)
	// 未覆盖的级别保持默认
	assert.Equal(t, 5*time.Minute, cfg.Escalation.Deadlines.High)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverride(t *testing.T) {
	p := writeConfig(t, "app:\n  env: test\n")
	t.Setenv("SAFETY_HTTP_ADDR", ":9191")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "温度阈值倒置",
			content: `
rules:
  thresholds:
    temperatureWarning: 60
    temperatureCritical: 50
`,
		},
		{
			name: "气体阈值倒置",
			content: `
rules:
  thresholds:
    gasWarning: 200
    gasCritical: 100
`,
		},
		{
			name:    "跌倒阈值为零",
			content: "rules:\n  thresholds:\n    fallMagnitude: 0\n",
		},
		{
			name:    "低电量阈值为负",
			content: "rules:\n  thresholds:\n    lowBattery: -1\n",
		},
		{
			name:    "未知队列后端",
			content: "notify:\n  queue: kafka\n",
		},
		{
			name:    "redis队列但未启用redis",
			content: "notify:\n  queue: redis\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
