// Package notify delivers callback-request notifications to the support
// team. The engine only sees the narrow Notifier contract; delivery failure
// never blocks the conversation.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/bizowl/support-assistant/internal/chatstore"
	logx "github.com/bizowl/support-assistant/pkg/logger"
)

// Notifier is told when a visitor submits contact details.
type Notifier interface {
	ContactRequested(ctx context.Context, c chatstore.Contact, sessionID string, history []chatstore.Message) error
}

// SMTPConfig configures outbound mail. Username empty means disabled.
type SMTPConfig struct {
	Host       string `envconfig:"MAIL_HOST" default:"smtp.gmail.com"`
	Port       int    `envconfig:"MAIL_PORT" default:"587"`
	Username   string `envconfig:"MAIL_USERNAME"`
	Password   string `envconfig:"MAIL_PASSWORD"`
	AdminEmail string `envconfig:"ADMIN_EMAIL"`
}

// Enabled reports whether mail delivery is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Username != ""
}

// recipient defaults to the sending account when no admin address is set.
func (c SMTPConfig) recipient() string {
	if c.AdminEmail != "" {
		return c.AdminEmail
	}
	return c.Username
}

// SMTPNotifier emails the support team about a call request.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) ContactRequested(ctx context.Context, c chatstore.Contact, sessionID string, history []chatstore.Message) error {
	subject := "New Call Request from Support Chatbot"
	body := buildBody(c, sessionID, history)

	msg := strings.Join([]string{
		"From: " + n.cfg.Username,
		"To: " + n.cfg.recipient(),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := smtp.SendMail(addr, auth, n.cfg.Username, []string{n.cfg.recipient()}, []byte(msg)); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to send contact notification email")
		return err
	}
	logx.Info().Str("session_id", sessionID).Msg("contact notification email sent")
	return nil
}

func buildBody(c chatstore.Contact, sessionID string, history []chatstore.Message) string {
	var b strings.Builder
	b.WriteString("A user has requested a call through the support chatbot.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orDefault(c.Name, "Unknown"))
	fmt.Fprintf(&b, "Email: %s\n", orDefault(c.Email, "Not provided"))
	fmt.Fprintf(&b, "Phone: %s\n", orDefault(c.Phone, "Not provided"))
	fmt.Fprintf(&b, "Issue: %s\n\n", c.Issue)

	b.WriteString("Chat History:\n")
	for _, m := range history {
		role := "User"
		if m.Sender == chatstore.SenderBot {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}

	fmt.Fprintf(&b, "\nChat ID: %s\n", sessionID)
	fmt.Fprintf(&b, "Request Time: %s\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// NopNotifier is used when mail is not configured; it only logs.
type NopNotifier struct{}

func (NopNotifier) ContactRequested(ctx context.Context, c chatstore.Contact, sessionID string, history []chatstore.Message) error {
	logx.Info().Str("session_id", sessionID).Str("email", c.Email).
		Msg("contact request received (mail delivery disabled)")
	return nil
}
