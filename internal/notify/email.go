package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
)

// subject 邮件标题 / 推送标题
func subject(a coremodel.Alert) string {
	return fmt.Sprintf("[%s] %s - %s", strings.ToUpper(string(a.Severity)), a.Type, a.WorkerName)
}

// body 纯文本正文
func body(a coremodel.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert #%d: %s\n", a.ID, a.Type)
	fmt.Fprintf(&b, "Worker: %s\n", a.WorkerName)
	fmt.Fprintf(&b, "Device: %s\n", a.DeviceID)
	fmt.Fprintf(&b, "Reading: %s", a.TriggerValue)
	if a.Threshold != "" {
		fmt.Fprintf(&b, " (threshold %s)", a.Threshold)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Raised at: %s\n", a.CreatedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// EmailSender SMTP 邮件通道；每个联系人一封
type EmailSender struct {
	cfg cfgpkg.SMTPConfig
	// dial 可替换，测试中不连接真实 SMTP
	dial func(ctx context.Context, msgs ...*mail.Msg) error
}

// NewEmailSender 创建邮件通道
func NewEmailSender(cfg cfgpkg.SMTPConfig) *EmailSender {
	s := &EmailSender{cfg: cfg}
	s.dial = s.dialAndSend
	return s
}

func (s *EmailSender) Channel() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, a coremodel.Alert, to Recipients) error {
	msgs, err := s.messages(a, to.Contacts)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return s.dial(ctx, msgs...)
}

func (s *EmailSender) messages(a coremodel.Alert, contacts []coremodel.EmergencyContact) ([]*mail.Msg, error) {
	var msgs []*mail.Msg
	var errs []error
	for _, c := range contacts {
		if strings.TrimSpace(c.Email) == "" {
			continue
		}
		m := mail.NewMsg()
		if err := m.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("smtp from: %w", err)
		}
		if err := m.To(c.Email); err != nil {
			errs = append(errs, fmt.Errorf("contact %d: %w", c.ID, err))
			continue
		}
		m.Subject(subject(a))
		m.SetBodyString(mail.TypeTextPlain, body(a))
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return msgs, nil
}

func (s *EmailSender) dialAndSend(ctx context.Context, msgs ...*mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
