// Package gateway 遥测接入：归一化、持久化样本、刷新设备心跳、评估规则并建单。
// HTTP 与 MQTT 两种传输共用 Ingest。
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/alerts"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/metrics"
	"github.com/taoyao-code/worker-safety/internal/rules"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

// 传输标识（指标标签）
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Store 网关所需的存储能力
type Store interface {
	storage.SampleRepo
	storage.DeviceRepo
}

// AlertCreator 建单入口
type AlertCreator interface {
	Create(ctx context.Context, req coremodel.AlertRequest, opts ...alerts.CreateOption) (*coremodel.Alert, error)
}

// IngestResult 接入结果
type IngestResult struct {
	RecordID        int64 `json:"record_id"`
	AlertsTriggered int   `json:"alerts_triggered"`
}

// Gateway 遥测网关；每条样本独立处理，不同设备之间无共享锁
type Gateway struct {
	store      Store
	evaluator  *rules.Evaluator
	thresholds *rules.ThresholdStore
	alerts     AlertCreator
	publisher  events.Publisher
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    *metrics.AppMetrics
}

// Deps 网关依赖
type Deps struct {
	Store      Store
	Evaluator  *rules.Evaluator
	Thresholds *rules.ThresholdStore
	Alerts     AlertCreator
	Publisher  events.Publisher
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *metrics.AppMetrics
}

// New 创建网关；未提供的可选依赖使用默认值
func New(d Deps) *Gateway {
	g := &Gateway{
		store:      d.Store,
		evaluator:  d.Evaluator,
		thresholds: d.Thresholds,
		alerts:     d.Alerts,
		publisher:  d.Publisher,
		clock:      d.Clock,
		logger:     d.Logger,
		metrics:    d.Metrics,
	}
	if g.evaluator == nil {
		g.evaluator = rules.NewEvaluator(nil, nil)
	}
	if g.thresholds == nil {
		g.thresholds = rules.NewThresholdStore(rules.DefaultThresholds())
	}
	if g.publisher == nil {
		g.publisher = events.Nop{}
	}
	if g.clock == nil {
		g.clock = clockwork.NewRealClock()
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Ingest 处理一条原始样本。
// 校验失败返回 *ValidationError；样本落库失败时不做后续处理；
// 部分告警建单失败不影响其他告警，错误合并返回，sensor_update 总会发出。
func (g *Gateway) Ingest(ctx context.Context, raw map[string]any, transport string) (res IngestResult, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			result = "invalid"
		case err != nil:
			result = "error"
		}
		g.metrics.ObserveIngest(transport, result, time.Since(start))
	}()

	now := g.clock.Now().UTC()
	sample, err := Normalize(raw, now)
	if err != nil {
		return IngestResult{}, err
	}

	recordID, err := g.store.AppendSample(ctx, sample)
	if err != nil {
		return IngestResult{}, fmt.Errorf("persist sample: %w", err)
	}
	res.RecordID = recordID

	device, err := g.store.TouchDevice(ctx, sample.DeviceID, now, sample.Battery)
	if err != nil {
		return res, fmt.Errorf("touch device: %w", err)
	}
	worker := g.resolveWorker(ctx, device)

	reqs, fired := g.evaluator.EvaluateTrace(sample, device, worker, g.thresholds.Snapshot())
	if len(fired) > 0 {
		g.logger.Debug("rules fired", zap.String("device_id", string(sample.DeviceID)), zap.Strings("rules", fired))
	}

	var errs []error
	for _, req := range reqs {
		if _, cerr := g.alerts.Create(ctx, req, alerts.WithOrigin(&sample, worker)); cerr != nil {
			g.logger.Error("create alert failed",
				zap.String("device_id", string(sample.DeviceID)),
				zap.String("rule", req.Rule),
				zap.Error(cerr))
			errs = append(errs, fmt.Errorf("create %s alert: %w", req.Type, cerr))
			continue
		}
		res.AlertsTriggered++
	}

	g.publisher.Publish(ctx, events.New(events.SensorUpdate, sample.DeviceID, now, events.SensorPayload{
		RecordID:   recordID,
		Sample:     sample,
		WorkerName: worker.DisplayName(),
		Alerts:     res.AlertsTriggered,
	}))

	return res, errors.Join(errs...)
}

// resolveWorker 未绑定或查询失败时返回 nil（展示为未知工人）
func (g *Gateway) resolveWorker(ctx context.Context, device *coremodel.Device) *coremodel.Worker {
	if device == nil || device.WorkerID == nil {
		return nil
	}
	w, err := g.store.GetWorker(ctx, *device.WorkerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn("resolve worker failed",
				zap.String("device_id", string(device.DeviceID)),
				zap.Int64("worker_id", *device.WorkerID),
				zap.Error(err))
		}
		return nil
	}
	return w
}
