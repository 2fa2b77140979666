package rules

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch 监听阈值文件变化并替换快照，直到 ctx 取消。
// 监听的是所在目录：编辑器的临时文件 + rename 保存会替换 inode，
// 直接监听文件会在第一次原子保存后失效。
// 重新加载失败时保留旧快照；onChange 非 nil 时在每次文件变化后调用。
func (s *ThresholdStore) Watch(ctx context.Context, path string, logger *zap.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("threshold watcher started", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			// rename 覆盖目标文件在目录上表现为 Create
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			s.reload(path, logger)
			if onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("threshold watcher error", zap.Error(err))
		}
	}
}

func (s *ThresholdStore) reload(path string, logger *zap.Logger) {
	t, err := LoadThresholds(path, s.Snapshot())
	if err != nil {
		logger.Error("threshold reload failed, keeping previous snapshot",
			zap.String("path", path), zap.Error(err))
		return
	}
	s.Set(t)
	logger.Info("thresholds reloaded",
		zap.Float64("temperature_warning", t.TemperatureWarning),
		zap.Float64("temperature_critical", t.TemperatureCritical),
		zap.Float64("gas_warning", t.GasWarning),
		zap.Float64("gas_critical", t.GasCritical),
		zap.Float64("fall_magnitude", t.FallMagnitude),
		zap.Float64("low_battery", t.LowBattery))
}
