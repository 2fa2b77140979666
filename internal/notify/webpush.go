package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// pushMessage 浏览器端 service worker 读取的负载
type pushMessage struct {
	Title    string             `json:"title"`
	Body     string             `json:"body"`
	AlertID  int64              `json:"alert_id"`
	Severity coremodel.Severity `json:"severity"`
	DeviceID coremodel.DeviceID `json:"device_id"`
}

// WebPushSender VAPID Web Push 通道
type WebPushSender struct {
	cfg    cfgpkg.WebPushConfig
	client *http.Client
}

// NewWebPushSender client 为 nil 时使用 http.DefaultClient
func NewWebPushSender(cfg cfgpkg.WebPushConfig, client *http.Client) *WebPushSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushSender{cfg: cfg, client: client}
}

func (s *WebPushSender) Channel() string { return "webpush" }

// Send 逐个订阅推送；部分失败合并返回
func (s *WebPushSender) Send(ctx context.Context, a coremodel.Alert, to Recipients) error {
	if len(to.Subscriptions) == 0 {
		return nil
	}
	payload, err := json.Marshal(pushMessage{
		Title:    subject(a),
		Body:     fmt.Sprintf("%s at device %s", a.TriggerValue, a.DeviceID),
		AlertID:  a.ID,
		Severity: a.Severity,
		DeviceID: a.DeviceID,
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range to.Subscriptions {
		if err := s.push(ctx, payload, sub); err != nil {
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *WebPushSender) push(ctx context.Context, payload []byte, sub coremodel.PushSubscription) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		// 404/410 表示订阅已失效，由订阅管理方清理
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
