package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/metrics"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

// Recipients 一次发送的收件对象
type Recipients struct {
	Contacts      []coremodel.EmergencyContact
	Subscriptions []coremodel.PushSubscription
}

// Sender 单个通道
type Sender interface {
	Channel() string
	Send(ctx context.Context, a coremodel.Alert, to Recipients) error
}

// Options 调度参数
type Options struct {
	Workers      int
	SendTimeout  time.Duration
	OfferTimeout time.Duration
}

// Dispatcher 从队列取任务并逐通道发送；每个通道独立失败
type Dispatcher struct {
	queue    Queue
	contacts storage.ContactRepo
	senders  []Sender
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.AppMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewDispatcher 创建调度器（未启动）
func NewDispatcher(q Queue, contacts storage.ContactRepo, senders []Sender, opts Options, logger *zap.Logger, m *metrics.AppMetrics) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.OfferTimeout <= 0 {
		opts.OfferTimeout = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    q,
		contacts: contacts,
		senders:  senders,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
}

// Enqueue 排队一条告警，不等待发送；队列满或不可用时丢弃并返回 false
func (d *Dispatcher) Enqueue(a coremodel.Alert) bool {
	if len(d.senders) == 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.OfferTimeout)
	defer cancel()

	if err := d.queue.Offer(ctx, Job{Alert: a, EnqueuedAt: time.Now().UTC()}); err != nil {
		reason := "error"
		if errors.Is(err, ErrQueueFull) {
			reason = "queue_full"
		}
		d.metrics.NotifyDrop(reason)
		d.logger.Warn("notification dropped",
			zap.Int64("alert_id", a.ID),
			zap.String("reason", reason),
			zap.Error(err))
		return false
	}
	d.metrics.NotifyQueued(d.queue.Backend())
	return true
}

// Start 启动工作协程
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.logger.Info("notify dispatcher started",
		zap.Int("workers", d.opts.Workers),
		zap.String("queue", d.queue.Backend()),
		zap.Int("channels", len(d.senders)))

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i+1)
	}
}

// Stop 停止取新任务并等待进行中的发送结束
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger := d.logger.With(zap.Int("worker_id", id))
	for {
		job, err := d.queue.Take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("notify worker stopped")
				return
			}
			logger.Error("notify queue take failed", zap.Error(err))
			continue
		}
		// 发送不随 Stop 中断，单次发送受 SendTimeout 约束
		d.process(context.WithoutCancel(ctx), job, logger)
	}
}

// process 处理一个任务；所有通道都失败时交给队列的失败处理
func (d *Dispatcher) process(ctx context.Context, job Job, logger *zap.Logger) {
	to := d.recipients(ctx, logger)
	failed := 0
	for _, s := range d.senders {
		if err := d.send(ctx, s, job.Alert, to); err != nil {
			failed++
			logger.Warn("notification send failed",
				zap.String("channel", s.Channel()),
				zap.Int64("alert_id", job.Alert.ID),
				zap.Error(err))
			continue
		}
		logger.Info("notification sent",
			zap.String("channel", s.Channel()),
			zap.Int64("alert_id", job.Alert.ID))
	}
	if failed > 0 && failed == len(d.senders) {
		d.queue.Fail(ctx, job, "all_channels_failed")
	}
}

// send 单通道失败边界：超时与 panic 均只影响本通道
func (d *Dispatcher) send(ctx context.Context, s Sender, a coremodel.Alert, to Recipients) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("sender panic")
			d.logger.Error("notification sender panic", zap.String("channel", s.Channel()), zap.Any("panic", r))
		}
		d.metrics.NotifyResult(s.Channel(), err)
	}()
	return s.Send(ctx, a, to)
}

// recipients 读取联系人与订阅；读取失败时以空集合继续（Webhook 不依赖收件人）
func (d *Dispatcher) recipients(ctx context.Context, logger *zap.Logger) Recipients {
	var to Recipients
	if d.contacts == nil {
		return to
	}
	contacts, err := d.contacts.ListEmergencyContacts(ctx)
	if err != nil {
		logger.Error("load emergency contacts failed", zap.Error(err))
	}
	subs, err := d.contacts.ListPushSubscriptions(ctx)
	if err != nil {
		logger.Error("load push subscriptions failed", zap.Error(err))
	}
	to.Contacts = contacts
	to.Subscriptions = subs
	return to
}
