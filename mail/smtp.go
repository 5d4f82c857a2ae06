package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config holds the SMTP connection settings for [SMTPMailer].
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// StartTLS upgrades the connection before authenticating. Leave it
	// off only for local development relays.
	StartTLS bool

	// DialTimeout bounds connection establishment. Zero means 10s.
	DialTimeout time.Duration
}

// SMTPMailer delivers single messages over SMTP, dialing a fresh
// connection per send. Suited to the low-volume transactional traffic
// of activation, OTP, and reset mail; pooling belongs to a relay.
type SMTPMailer struct {
	config Config
}

// NewSMTPMailer validates cfg and returns a ready [SMTPMailer].
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.New("smtp port out of range")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	return &SMTPMailer{config: cfg}, nil
}

// Send delivers one message to one recipient. The context bounds the
// dial and is checked between protocol phases; an in-flight DATA block
// is not interrupted.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.config.Host, fmt.Sprintf("%d", m.config.Port))

	dialer := net.Dialer{Timeout: m.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if m.config.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.config.Username != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.config.From, to, subject, body)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
