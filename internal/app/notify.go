package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/notify"
)

// NewSenders 按配置启用外发通道
func NewSenders(cfg cfgpkg.NotifyConfig, logger *zap.Logger) []notify.Sender {
	client := &http.Client{Timeout: cfg.SendTimeout}
	var out []notify.Sender
	if cfg.SMTP.Enabled {
		out = append(out, notify.NewEmailSender(cfg.SMTP))
	}
	if cfg.WebPush.Enabled {
		out = append(out, notify.NewWebPushSender(cfg.WebPush, client))
	}
	if cfg.Webhook.Enabled {
		out = append(out, notify.NewWebhookSender(cfg.Webhook, client))
	}

	channels := make([]string, 0, len(out))
	for _, s := range out {
		channels = append(channels, s.Channel())
	}
	logger.Info("notification channels", zap.Strings("enabled", channels), zap.String("queue", cfg.Queue))
	return out
}
