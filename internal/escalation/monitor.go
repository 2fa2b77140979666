// Package escalation 周期巡检超时未确认的告警并升级。
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/metrics"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

// DefaultInterval 默认巡检间隔
const DefaultInterval = 30 * time.Second

// Deadlines 各严重级别的升级时限
type Deadlines struct {
	Critical time.Duration
	High     time.Duration
	Medium   time.Duration
	Low      time.Duration
}

// DefaultDeadlines 内置时限
func DefaultDeadlines() Deadlines {
	return Deadlines{
		Critical: 2 * time.Minute,
		High:     5 * time.Minute,
		Medium:   10 * time.Minute,
		Low:      15 * time.Minute,
	}
}

// DeadlinesFromConfig 未配置（<=0）的级别使用默认值
func DeadlinesFromConfig(c cfgpkg.DeadlinesConfig) Deadlines {
	d := DefaultDeadlines()
	if c.Critical > 0 {
		d.Critical = c.Critical
	}
	if c.High > 0 {
		d.High = c.High
	}
	if c.Medium > 0 {
		d.Medium = c.Medium
	}
	if c.Low > 0 {
		d.Low = c.Low
	}
	return d
}

// For 返回级别对应时限；未知级别按 Medium 处理
func (d Deadlines) For(s coremodel.Severity) time.Duration {
	switch s {
	case coremodel.SeverityCritical:
		return d.Critical
	case coremodel.SeverityHigh:
		return d.High
	case coremodel.SeverityLow:
		return d.Low
	default:
		return d.Medium
	}
}

// Result 单次巡检结果
type Result struct {
	Checked   int  `json:"checked"`
	Escalated int  `json:"escalated"`
	Skipped   bool `json:"skipped"`
}

// Monitor 升级巡检器；同一时刻最多一个巡检在执行
type Monitor struct {
	repo      storage.AlertRepo
	publisher events.Publisher
	clock     clockwork.Clock
	interval  time.Duration
	deadlines atomic.Pointer[Deadlines]
	logger    *zap.Logger
	metrics   *metrics.AppMetrics

	running atomic.Bool

	// 统计
	statsSweeps    atomic.Int64
	statsEscalated atomic.Int64
	statsSkipped   atomic.Int64
}

// Option 可选依赖
type Option func(*Monitor)

// WithClock 替换时钟（测试用 clockwork.FakeClock）
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithMetrics 设置指标
func WithMetrics(am *metrics.AppMetrics) Option {
	return func(m *Monitor) { m.metrics = am }
}

// NewMonitor 创建巡检器；interval<=0 使用默认值
func NewMonitor(repo storage.AlertRepo, publisher events.Publisher, interval time.Duration, deadlines Deadlines, logger *zap.Logger, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		repo:      repo,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		interval:  interval,
		logger:    logger,
	}
	m.deadlines.Store(&deadlines)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDeadlines 替换时限；下一次巡检生效
func (m *Monitor) SetDeadlines(d Deadlines) {
	m.deadlines.Store(&d)
}

// Deadlines 当前时限快照
func (m *Monitor) Deadlines() Deadlines {
	return *m.deadlines.Load()
}

// Start 阻塞运行直到 ctx 取消
func (m *Monitor) Start(ctx context.Context) {
	d := m.Deadlines()
	m.logger.Info("escalation monitor started",
		zap.Duration("interval", m.interval),
		zap.Duration("critical", d.Critical),
		zap.Duration("high", d.High),
		zap.Duration("medium", d.Medium),
		zap.Duration("low", d.Low))

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("escalation monitor stopped",
				zap.Int64("sweeps", m.statsSweeps.Load()),
				zap.Int64("escalated", m.statsEscalated.Load()),
				zap.Int64("skipped", m.statsSkipped.Load()))
			return
		case <-ticker.Chan():
			// 单次巡检失败不影响后续巡检
			if _, err := m.RunOnce(ctx); err != nil {
				m.logger.Error("escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 执行一次巡检。已有巡检在执行时立即返回 Skipped。
// 单条告警的失败被合并返回，不中断本次巡检。
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	if !m.running.CompareAndSwap(false, true) {
		m.statsSkipped.Add(1)
		m.metrics.SweepSkipped()
		m.logger.Debug("escalation sweep skipped: previous sweep still running")
		return Result{Skipped: true}, nil
	}
	defer m.running.Store(false)

	start := time.Now()
	m.statsSweeps.Add(1)
	res, err := m.sweep(ctx)
	m.metrics.SweepDone(time.Since(start), err != nil)
	return res, err
}

func (m *Monitor) sweep(ctx context.Context) (Result, error) {
	var res Result
	deadlines := m.Deadlines()

	candidates, err := m.repo.ListEscalationCandidates(ctx)
	if err != nil {
		return res, fmt.Errorf("list escalation candidates: %w", err)
	}
	res.Checked = len(candidates)

	now := m.clock.Now().UTC()
	var errs []error
	for i := range candidates {
		a := candidates[i]
		age := now.Sub(a.CreatedAt)
		if age < deadlines.For(a.Severity) {
			continue
		}

		ok, err := m.repo.MarkEscalated(ctx, a.ID, now)
		if err != nil {
			m.logger.Error("mark escalated failed", zap.Int64("alert_id", a.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("escalate alert %d: %w", a.ID, err))
			continue
		}
		if !ok {
			// 期间已被确认/解决/升级
			continue
		}

		at := now
		a.Escalated = true
		a.EscalatedAt = &at
		a.UpdatedAt = now
		res.Escalated++
		m.statsEscalated.Add(1)
		m.metrics.Escalated(string(a.Severity))

		m.logger.Warn("alert escalated",
			zap.Int64("alert_id", a.ID),
			zap.String("severity", string(a.Severity)),
			zap.String("device_id", string(a.DeviceID)),
			zap.String("worker", a.WorkerName),
			zap.Duration("age", age))

		m.publisher.Publish(ctx, events.New(events.EmergencyEscalated, a.DeviceID, now, events.EscalationPayload{
			Alert:      a,
			AgeMs:      age.Milliseconds(),
			WorkerName: a.WorkerName,
		}))
	}
	return res, errors.Join(errs...)
}
