// Package mailer sends decision notification emails to customers.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/opensource-delivery/kite/internal/domain"
)

// Mailer sends a plain-text decision summary over SMTP. A Mailer with no
// host configured is disabled: Send succeeds without doing anything so the
// classification path never depends on email availability.
type Mailer struct {
	cfg  domain.MailerConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a mailer from configuration.
func New(cfg domain.MailerConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// SendDecision emails the classification outcome to the customer.
// Failures are logged, never returned as fatal to the caller's request.
func (m *Mailer) SendDecision(ctx context.Context, to string, resp *domain.Response) bool {
	if !m.Enabled() || to == "" {
		return false
	}

	port := m.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := buildMessage(m.cfg.From, to, resp)

	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		slog.Error("failed to send decision email",
			"complaint_id", resp.ComplaintID,
			"error", err,
		)
		return false
	}

	slog.Info("decision email sent",
		"complaint_id", resp.ComplaintID,
		"decision", resp.Decision,
	)
	return true
}

func buildMessage(from, to string, resp *domain.Response) []byte {
	subject := fmt.Sprintf("Update on your order %s", resp.OrderID)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Hello,\r\n\r\nWe have reviewed your complaint about order %s.\r\n\r\n", resp.OrderID)

	switch resp.Decision {
	case domain.DecisionRefund:
		b.WriteString("A refund has been approved and will be processed to your original payment method within 3-5 business days.\r\n")
	case domain.DecisionDeny:
		b.WriteString("After careful review we are unable to process a refund for this order. If you have additional information, please reply to this email.\r\n")
	default:
		fmt.Fprintf(&b, "Your case has been escalated to our support team. You can expect an update within %d minutes.\r\n", resp.SLAMinutes)
	}

	fmt.Fprintf(&b, "\r\nReference: %s\r\n\r\nThank you for your patience.\r\n", resp.ComplaintID)
	return []byte(b.String())
}
