// Package alerts 告警生命周期：建单、确认、指派、解决、归档，并在每次变更后发布事件。
package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/metrics"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

// Notifier Critical 告警的外发通知入口（必须非阻塞）
type Notifier interface {
	Enqueue(a coremodel.Alert) bool
}

// Service 告警服务
type Service struct {
	repo      storage.AlertRepo
	publisher events.Publisher
	notifier  Notifier
	clock     clockwork.Clock
	logger    *zap.Logger
	metrics   *metrics.AppMetrics
}

// Option 可选依赖
type Option func(*Service)

// WithNotifier 设置外发通知
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock 替换时钟（测试用）
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.AppMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService 创建告警服务；publisher 为 nil 时事件被丢弃
func NewService(repo storage.AlertRepo, publisher events.Publisher, logger *zap.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOption 建单上下文
type CreateOption func(*createParams)

type createParams struct {
	sample *coremodel.Sample
	worker *coremodel.Worker
}

// WithOrigin 附带触发样本与工人，用于 emergency_alert 的位置与姓名
func WithOrigin(sample *coremodel.Sample, worker *coremodel.Worker) CreateOption {
	return func(p *createParams) {
		p.sample = sample
		p.worker = worker
	}
}

// Create 以 Pending 状态建单并发布 alert 事件；Critical 额外发布 emergency_alert 并排队外发通知
func (s *Service) Create(ctx context.Context, req coremodel.AlertRequest, opts ...CreateOption) (*coremodel.Alert, error) {
	var p createParams
	for _, opt := range opts {
		opt(&p)
	}

	now := s.clock.Now().UTC()
	priority := req.Priority
	if priority == "" {
		priority = req.Severity.DefaultPriority()
	}
	a := &coremodel.Alert{
		Type:         req.Type,
		Severity:     req.Severity,
		DeviceID:     req.DeviceID,
		WorkerID:     req.WorkerID,
		TriggerValue: req.TriggerValue,
		Threshold:    req.Threshold,
		Status:       coremodel.StatusPending,
		Priority:     priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	if a.WorkerName == "" {
		a.WorkerName = p.worker.DisplayName()
	}

	s.metrics.AlertCreated(string(a.Type), string(a.Severity))
	s.logger.Info("alert created",
		zap.Int64("alert_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("severity", string(a.Severity)),
		zap.String("device_id", string(a.DeviceID)),
		zap.String("rule", req.Rule))

	s.publisher.Publish(ctx, events.New(events.AlertCreated, a.DeviceID, now, events.Summarize(a)))

	if a.Severity == coremodel.SeverityCritical {
		payload := events.EmergencyPayload{
			Alert:   *a,
			Worker:  p.worker,
			Message: emergencyMessage(a),
		}
		if p.sample != nil {
			payload.Latitude = p.sample.Latitude
			payload.Longitude = p.sample.Longitude
		}
		s.publisher.Publish(ctx, events.New(events.EmergencyAlert, a.DeviceID, now, payload))

		if s.notifier != nil && !s.notifier.Enqueue(*a) {
			s.logger.Warn("emergency notification not queued", zap.Int64("alert_id", a.ID))
		}
	}
	return a, nil
}

func emergencyMessage(a *coremodel.Alert) string {
	return fmt.Sprintf("%s: %s (%s) on device %s", a.Type, a.WorkerName, a.TriggerValue, a.DeviceID)
}

// Acknowledge 确认告警；已确认或已解决返回 storage.ErrInvalidTransition
func (s *Service) Acknowledge(ctx context.Context, id int64, by string, notes *string) (*coremodel.Alert, error) {
	a, err := s.repo.AcknowledgeAlert(ctx, id, by, s.clock.Now().UTC(), notes)
	if err != nil {
		return nil, err
	}
	s.afterUpdate(ctx, "acknowledged", a, true)
	return a, nil
}

// BatchAcknowledge 以同一确认时间批量确认；不存在或不可确认的 id 被跳过
func (s *Service) BatchAcknowledge(ctx context.Context, ids []int64, by string, notes *string) ([]coremodel.Alert, error) {
	at := s.clock.Now().UTC()
	out := make([]coremodel.Alert, 0, len(ids))
	for _, id := range ids {
		a, err := s.repo.AcknowledgeAlert(ctx, id, by, at, notes)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidTransition) {
				s.logger.Debug("batch acknowledge skipped", zap.Int64("alert_id", id), zap.Error(err))
				continue
			}
			return out, err
		}
		s.afterUpdate(ctx, "acknowledged", a, true)
		out = append(out, *a)
	}
	return out, nil
}

// Assign 指派处理人，状态不变
func (s *Service) Assign(ctx context.Context, id int64, assignee string) (*coremodel.Alert, error) {
	a, err := s.repo.AssignAlert(ctx, id, assignee, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.afterUpdate(ctx, "assigned", a, true)
	return a, nil
}

// UpdateNotes 覆盖备注
func (s *Service) UpdateNotes(ctx context.Context, id int64, notes string) (*coremodel.Alert, error) {
	a, err := s.repo.UpdateNotes(ctx, id, notes, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.afterUpdate(ctx, "notes_updated", a, false)
	return a, nil
}

// Resolve 解决告警（任意未解决状态均可）；重复解决返回 storage.ErrInvalidTransition
func (s *Service) Resolve(ctx context.Context, id int64, notes *string) (*coremodel.Alert, error) {
	now := s.clock.Now().UTC()
	a, err := s.repo.ResolveAlert(ctx, id, now, notes)
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("resolved")
	s.logger.Info("alert resolved", zap.Int64("alert_id", a.ID))
	payload := events.UpdatePayload{Action: "resolved", Alert: *a}
	s.publisher.Publish(ctx, events.New(events.EmergencyResolved, a.DeviceID, now, payload))
	s.publisher.Publish(ctx, events.New(events.AlertUpdated, a.DeviceID, now, payload))
	return a, nil
}

// Archive 归档（与状态无关）
func (s *Service) Archive(ctx context.Context, id int64) (*coremodel.Alert, error) {
	a, err := s.repo.ArchiveAlert(ctx, id, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.afterUpdate(ctx, "archived", a, false)
	return a, nil
}

// Get 按 ID 查询
func (s *Service) Get(ctx context.Context, id int64) (*coremodel.Alert, error) {
	return s.repo.GetAlert(ctx, id)
}

// List 按条件分页查询；默认排除已归档
func (s *Service) List(ctx context.Context, f coremodel.AlertFilter) ([]coremodel.Alert, error) {
	return s.repo.ListAlerts(ctx, f)
}

// afterUpdate 记录指标并发布 alert_updated；emergency 为 true 且为 Critical 时追加 emergency_status_updated
func (s *Service) afterUpdate(ctx context.Context, action string, a *coremodel.Alert, emergency bool) {
	s.metrics.Transition(action)
	s.logger.Info("alert updated", zap.Int64("alert_id", a.ID), zap.String("action", action),
		zap.String("status", string(a.Status)))

	now := s.clock.Now().UTC()
	payload := events.UpdatePayload{Action: action, Alert: *a}
	s.publisher.Publish(ctx, events.New(events.AlertUpdated, a.DeviceID, now, payload))
	if emergency && a.Severity == coremodel.SeverityCritical {
		s.publisher.Publish(ctx, events.New(events.EmergencyStatusUpdated, a.DeviceID, now, payload))
	}
}
