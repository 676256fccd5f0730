// Package email is the optional email-notification side channel, ported
// from email_sender.py and coglet-pi.py's _handle_email_request intent
// branch. Disabled unless a Config is supplied; the dialogue controller
// treats it as an optional command-intent branch alongside normal chat
// turns, not a core requirement.
package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config carries SMTP connection details.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Sender sends plain-text notification emails over SMTP.
type Sender struct {
	cfg Config
}

// NewSender builds a Sender from cfg. A zero Config disables sending;
// callers should check Enabled before invoking Send.
func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Enabled reports whether SMTP connection details were configured.
func (s *Sender) Enabled() bool {
	return s.cfg.Host != "" && s.cfg.From != "" && s.cfg.To != ""
}

// Send delivers subject/body to the configured recipient.
func (s *Sender) Send(subject, body string) error {
	if !s.Enabled() {
		return fmt.Errorf("email: sender not configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := buildMessage(s.cfg.From, s.cfg.To, subject, body)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{s.cfg.To}, msg); err != nil {
		return fmt.Errorf("email: send failed: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n\r\n", subject)
	sb.WriteString(body)
	return []byte(sb.String())
}

// IsEmailRequest reports whether text looks like a request to send an
// email, mirroring coglet-pi.py's _is_email_request keyword heuristic.
func IsEmailRequest(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "send an email") || strings.Contains(lower, "email that") ||
		strings.Contains(lower, "send email")
}
