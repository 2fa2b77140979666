package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/escalation"
	"github.com/taoyao-code/worker-safety/internal/rules"
)

// NewRuleEngine 构建评估器与阈值快照。
// 配置阈值非法时退回内置默认值；阈值文件加载失败沿用配置值。
func NewRuleEngine(cfg cfgpkg.RulesConfig, logger *zap.Logger) (*rules.Evaluator, *rules.ThresholdStore) {
	base := rules.FromConfig(cfg.Thresholds)
	if err := base.Validate(); err != nil {
		logger.Warn("invalid configured thresholds, using built-in defaults", zap.Error(err))
		base = rules.DefaultThresholds()
	}
	if cfg.ThresholdFile != "" {
		if t, err := rules.LoadThresholds(cfg.ThresholdFile, base); err == nil {
			base = t
		} else {
			logger.Warn("load threshold file failed, using config values",
				zap.String("path", cfg.ThresholdFile), zap.Error(err))
		}
	}
	store := rules.NewThresholdStore(base)

	var voice *rules.VoiceTable
	if cfg.VoiceTablePath != "" {
		vt, err := rules.LoadVoiceTable(cfg.VoiceTablePath)
		if err != nil {
			logger.Warn("load voice table failed, using built-in table",
				zap.String("path", cfg.VoiceTablePath), zap.Error(err))
		} else {
			voice = vt
			logger.Info("voice table loaded", zap.String("path", cfg.VoiceTablePath), zap.Int("codes", len(vt.Map)))
		}
	}
	return rules.NewEvaluator(nil, voice), store
}

// NewDeadlines 以配置为底，阈值文件中的 escalation_deadlines 覆盖
func NewDeadlines(rc cfgpkg.RulesConfig, ec cfgpkg.EscalationConfig, logger *zap.Logger) escalation.Deadlines {
	d := escalation.DeadlinesFromConfig(ec.Deadlines)
	if rc.ThresholdFile == "" {
		return d
	}
	fd, err := escalation.LoadDeadlines(rc.ThresholdFile, d)
	if err != nil {
		logger.Warn("load escalation deadlines failed, using config values",
			zap.String("path", rc.ThresholdFile), zap.Error(err))
		return d
	}
	return fd
}

// WatchRules 阻塞监听阈值文件直到 ctx 取消；阈值与升级时限（monitor 非 nil 时）一起热更新
func WatchRules(ctx context.Context, path string, store *rules.ThresholdStore, monitor *escalation.Monitor, logger *zap.Logger) {
	if path == "" {
		return
	}
	var onChange func()
	if monitor != nil {
		onChange = func() {
			d, err := escalation.LoadDeadlines(path, monitor.Deadlines())
			if err != nil {
				logger.Error("escalation deadlines reload failed, keeping previous", zap.Error(err))
				return
			}
			monitor.SetDeadlines(d)
			logger.Info("escalation deadlines reloaded",
				zap.Duration("critical", d.Critical),
				zap.Duration("high", d.High),
				zap.Duration("medium", d.Medium),
				zap.Duration("low", d.Low))
		}
	}
	if err := store.Watch(ctx, path, logger, onChange); err != nil {
		logger.Warn("threshold watcher stopped", zap.Error(err))
	}
}
