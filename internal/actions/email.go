// ABOUTME: The send_email action handler: SMTP delivery via go-mail, dial-per-send.
// ABOUTME: Subject and body come from rule params with {{field}} placeholders from trigger data.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/numzhq/automation/internal/engine"
)

// SMTPConfig holds SMTP connection parameters sourced from global env vars.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	FromName string
	Username string
	Password string
	TLS      bool
}

// NewSendEmailHandler returns the handler for the send_email action type.
//
// Recipient resolution: the "to" param wins; otherwise the handler falls back
// to the customer_email / email fields of the trigger data, so a bare
// send_email action on an invoice event reaches the invoice's customer
// without any configuration.
func NewSendEmailHandler(cfg SMTPConfig) engine.Handler {
	return func(ctx context.Context, params map[string]string, tc engine.TriggerContext) error {
		to := strings.TrimSpace(params["to"])
		if to == "" {
			to = recipientFromContext(tc)
		}
		if to == "" {
			return errors.New("send_email: no recipient: set the to param or include customer_email in the event")
		}

		subject := interpolate(params["subject"], tc)
		if subject == "" {
			subject = "Automated notification"
		}
		body := interpolate(params["body"], tc)

		return sendMail(ctx, cfg, splitRecipients(to), subject, body)
	}
}

func recipientFromContext(tc engine.TriggerContext) string {
	for _, field := range []string{"customer_email", "email", "user.email", "customer.email"} {
		if v, ok := tc.Resolve(field); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func splitRecipients(to string) []string {
	var out []string
	for _, part := range strings.Split(to, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sendMail delivers one plaintext email via DialAndSend — no persistent SMTP
// connection, automation traffic is sporadic.
func sendMail(ctx context.Context, cfg SMTPConfig, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return errors.New("send_email: no recipients")
	}

	// Strip CR/LF from subject to prevent header injection.
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	m := mail.NewMsg()
	if err := m.FromFormat(cfg.FromName, cfg.From); err != nil {
		return fmt.Errorf("send_email: set from: %w", err)
	}
	if err := m.To(recipients...); err != nil {
		return fmt.Errorf("send_email: set to: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain))
		opts = append(opts, mail.WithUsername(cfg.Username))
		opts = append(opts, mail.WithPassword(cfg.Password))
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("send_email: create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send_email: %w", err)
	}
	return nil
}
