package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadThresholds_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	writeFile(t, path, "temperature_warning: 35\ntemperature_critical: 45\n")

	got, err := LoadThresholds(path, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 35.0, got.TemperatureWarning)
	assert.Equal(t, 45.0, got.TemperatureCritical)
	assert.Equal(t, 100.0, got.GasCritical, "未出现的字段沿用 base")
}

func TestLoadThresholds_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "temperature_warning: 60\n")
	base := DefaultThresholds()
	got, err := LoadThresholds(bad, base)
	assert.Error(t, err)
	assert.Equal(t, base, got)

	_, err = LoadThresholds(filepath.Join(dir, "missing.yaml"), base)
	assert.Error(t, err)
}

func TestThresholdStore_SnapshotIsCopy(t *testing.T) {
	s := NewThresholdStore(DefaultThresholds())
	snap := s.Snapshot()
	snap.TemperatureCritical = 999
	assert.Equal(t, 50.0, s.Snapshot().TemperatureCritical)

	next := DefaultThresholds()
	next.LowBattery = 10
	s.Set(next)
	assert.Equal(t, 10.0, s.Snapshot().LowBattery)
	assert.Equal(t, 20.0, snap.LowBattery)
}

func TestThresholdStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	writeFile(t, path, "low_battery: 20\n")

	s := NewThresholdStore(DefaultThresholds())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, path, zap.NewNop(), nil) }()

	// 等待 watcher 就绪后写入
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "low_battery: 12\n")

	assert.Eventually(t, func() bool {
		return s.Snapshot().LowBattery == 12
	}, 3*time.Second, 20*time.Millisecond)

	// 非法内容不覆盖当前快照
	writeFile(t, path, "gas_warning: 500\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 12.0, s.Snapshot().LowBattery)
	assert.Equal(t, 50.0, s.Snapshot().GasWarning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// 临时文件写完后 rename 覆盖目标，连续两次都应生效
func TestThresholdStore_WatchAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	writeFile(t, path, "temperature_warning: 40\n")

	s := NewThresholdStore(DefaultThresholds())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	go func() { _ = s.Watch(ctx, path, zap.NewNop(), func() { changes.Add(1) }) }()
	time.Sleep(100 * time.Millisecond)

	save := func(content string) {
		tmp := filepath.Join(dir, ".thresholds.yaml.tmp")
		writeFile(t, tmp, content)
		require.NoError(t, os.Rename(tmp, path))
	}

	save("temperature_warning: 42\n")
	assert.Eventually(t, func() bool {
		return s.Snapshot().TemperatureWarning == 42
	}, 3*time.Second, 20*time.Millisecond)

	save("temperature_warning: 44\n")
	assert.Eventually(t, func() bool {
		return s.Snapshot().TemperatureWarning == 44
	}, 3*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, changes.Load(), int32(2))

	// 同目录其他文件不触发
	before := changes.Load()
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, changes.Load())
}

func TestLoadVoiceTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.yaml")
	writeFile(t, path, `map:
  Trapped:
    type: Voice Emergency
    severity: Critical
  pain:
    type: Voice Pain Report
    severity: Medium
`)
	vt, err := LoadVoiceTable(path)
	require.NoError(t, err)

	e, ok := vt.Lookup("trapped")
	require.True(t, ok)
	assert.Equal(t, coremodel.SeverityCritical, e.Severity)

	e, ok = vt.Lookup("PAIN")
	require.True(t, ok)
	assert.Equal(t, coremodel.SeverityMedium, e.Severity, "文件覆盖内置项")

	_, ok = vt.Lookup("help")
	assert.True(t, ok, "内置项保留")
}

func TestLoadVoiceTable_InvalidSeverity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.yaml")
	writeFile(t, path, "map:\n  help:\n    type: Voice Help Request\n    severity: Extreme\n")
	_, err := LoadVoiceTable(path)
	assert.Error(t, err)
}

func TestVoiceTable_NilLookup(t *testing.T) {
	var vt *VoiceTable
	_, ok := vt.Lookup("help")
	assert.False(t, ok)
}
