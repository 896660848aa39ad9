package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"beatshop/internal/config"
)

type emailSender struct {
	cfg     config.Email
	timeout time.Duration
	// deliver is swapped in tests.
	deliver func(ctx context.Context, msg *mail.Msg) error
}

func newEmailSender(cfg config.Email, timeout time.Duration) *emailSender {
	s := &emailSender{cfg: cfg, timeout: timeout}
	s.deliver = s.dialAndSend
	return s
}

func (s *emailSender) name() string { return "email" }

func (s *emailSender) send(ctx context.Context, data message) error {
	msg, err := s.compose(data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *emailSender) compose(data message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("email from: %w", err)
	}
	if err := msg.To(s.cfg.To...); err != nil {
		return nil, fmt.Errorf("email to: %w", err)
	}
	msg.Subject(data.title)
	body := data.body
	if len(data.tags) > 0 {
		body = fmt.Sprintf("%s\n\nTags: %s", body, strings.Join(data.tags, ", "))
	}
	msg.SetBodyString(mail.TypeTextPlain, body)
	if data.priority == "high" {
		msg.SetImportance(mail.ImportanceHigh)
	}
	return msg, nil
}

func (s *emailSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.timeout),
	}
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
