package adapters

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"architect/internal/auth/ports"
	"architect/internal/logging"
)

const magicLinkSubject = "Your Richfield Career Architect sign-in link"

// LogMailer writes sign-in links to the application log. Used in development.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logging.OrNop(logger)}
}

func (m *LogMailer) SendMagicLink(ctx context.Context, email, link string) error {
	logging.FromContext(ctx, m.logger).Info("Magic link for %s: %s", email, link)
	return nil
}

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers sign-in links through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendMailFunc
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, email, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid recipient %q", email)
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{email}, composeMagicLinkMessage(m.cfg.From, email, link)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func composeMagicLinkMessage(from, to, link string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", magicLinkSubject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString("Click the link below to open your career roadmap:\r\n\r\n")
	b.WriteString(link)
	b.WriteString("\r\n\r\nThe link can be used once and expires shortly.\r\n")
	return []byte(b.String())
}

var (
	_ ports.Mailer = (*LogMailer)(nil)
	_ ports.Mailer = (*SMTPMailer)(nil)
)
