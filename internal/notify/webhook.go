package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// WebhookEvent 外部集成收到的事件体
type WebhookEvent struct {
	Event     string          `json:"event"`
	DeviceID  string          `json:"device_id"`
	Timestamp int64           `json:"timestamp"`
	Nonce     string          `json:"nonce"`
	Alert     coremodel.Alert `json:"alert"`
}

// WebhookSender 带 HMAC 签名的 Webhook 通道
type WebhookSender struct {
	endpoint string
	apiKey   string
	secret   string
	client   *http.Client
	now      func() time.Time
}

// NewWebhookSender client 为 nil 时按配置超时创建
func NewWebhookSender(cfg cfgpkg.WebhookConfig, client *http.Client) *WebhookSender {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSender{
		endpoint: cfg.URL,
		apiKey:   cfg.APIKey,
		secret:   cfg.Secret,
		client:   client,
		now:      time.Now,
	}
}

func (s *WebhookSender) Channel() string { return "webhook" }

// SignHMAC 生成 HMAC-SHA256 签名（hex）
func SignHMAC(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Canonical 签名原文: METHOD\npath\ntimestamp\nnonce\nsha256(body)
func Canonical(method, path string, ts int64, nonce string, body []byte) string {
	h := sha256.Sum256(body)
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s", strings.ToUpper(method), path, ts, nonce, hex.EncodeToString(h[:]))
}

func newNonce() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Send 单次投递；非 2xx 视为失败，由调度器记录
func (s *WebhookSender) Send(ctx context.Context, a coremodel.Alert, _ Recipients) error {
	if s.endpoint == "" {
		return errors.New("webhook url not configured")
	}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}

	ts := s.now().Unix()
	nonce := newNonce()
	payload, err := json.Marshal(WebhookEvent{
		Event:     "emergency_alert",
		DeviceID:  string(a.DeviceID),
		Timestamp: ts,
		Nonce:     nonce,
		Alert:     a,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("X-Signature", SignHMAC(s.secret, Canonical(http.MethodPost, u.Path, ts, nonce, payload)))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Nonce", nonce)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
