package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

const implicitTLSPort = 465

// SMTP sends plain-text mail through the tenant's relay.
type SMTP struct {
	Timeout time.Duration
}

// Name implements Channel.
func (SMTP) Name() string { return "smtp" }

// Configured implements Channel.
func (SMTP) Configured(cfg domain.NotificationSettings) bool {
	s := cfg.SMTP
	return s.Enabled && strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != "" && len(recipients(s.To)) > 0
}

// Send implements Channel.
func (s SMTP) Send(ctx context.Context, cfg domain.NotificationSettings, msg Message) error {
	c := cfg.SMTP
	to := recipients(c.To)
	if len(to) == 0 {
		return errors.New("smtp: no recipients")
	}
	port := c.Port
	if port <= 0 {
		port = implicitTLSPort
	}
	opts := []mail.Option{mail.WithPort(port)}
	if s.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.Timeout))
	}
	if port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if c.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.Username),
			mail.WithPassword(c.Password),
		)
	}
	client, err := mail.NewClient(strings.TrimSpace(c.Host), opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(strings.TrimSpace(c.From)); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(to...); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Title)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func recipients(list []string) []string {
	out := make([]string, 0, len(list))
	for _, addr := range list {
		for _, part := range strings.Split(addr, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
