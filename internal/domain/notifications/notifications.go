// Package notifications provides interfaces for sending email
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EmailNotification represents an email to send
type EmailNotification struct {
	To       string
	From     string
	Subject  string
	TextBody string
	HTMLBody string
}

// EmailProvider defines the interface for email providers
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, notification EmailNotification) error
}

// Checker is implemented by providers that can verify their backend is reachable
type Checker interface {
	Check(ctx context.Context) error
}

// Notifier sends email through a primary provider and an optional fallback
type Notifier interface {
	SendEmail(ctx context.Context, n EmailNotification) error
	Check(ctx context.Context) error
}

// CompositeNotifier implements Notifier using configurable providers
type CompositeNotifier struct {
	primary  EmailProvider
	fallback EmailProvider
	from     string
}

// NewCompositeNotifier creates a new composite notifier. fallback may be nil.
func NewCompositeNotifier(primary, fallback EmailProvider, from string) *CompositeNotifier {
	return &CompositeNotifier{
		primary:  primary,
		fallback: fallback,
		from:     from,
	}
}

func (n *CompositeNotifier) SendEmail(ctx context.Context, msg EmailNotification) error {
	if msg.To == "" {
		return errors.New("recipient address is required")
	}
	if msg.From == "" {
		msg.From = n.from
	}
	if n.primary == nil {
		return errors.New("no email provider configured")
	}

	err := n.primary.Send(ctx, msg)
	if err == nil || n.fallback == nil {
		return err
	}

	log.WithError(err).WithFields(log.Fields{
		"provider": n.primary.Name(),
		"fallback": n.fallback.Name(),
		"to":       msg.To,
	}).Warn("Primary email provider failed, using fallback")
	if ferr := n.fallback.Send(ctx, msg); ferr != nil {
		return fmt.Errorf("failed to send email via %s and %s: %w", n.primary.Name(), n.fallback.Name(), errors.Join(err, ferr))
	}
	return nil
}

// Check verifies the primary provider if it supports checking
func (n *CompositeNotifier) Check(ctx context.Context) error {
	if n.primary == nil {
		return errors.New("no email provider configured")
	}
	if c, ok := n.primary.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// LogEmailProvider writes emails to the log instead of delivering them
type LogEmailProvider struct{}

func (p *LogEmailProvider) Name() string { return "log" }

func (p *LogEmailProvider) Send(ctx context.Context, n EmailNotification) error {
	log.WithFields(log.Fields{
		"to":      n.To,
		"from":    n.From,
		"subject": n.Subject,
		"bytes":   len(n.TextBody) + len(n.HTMLBody),
	}).Info("Email (log provider)")
	return nil
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPProvider delivers email through an SMTP relay
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTPProvider creates a new SMTP provider
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) addr() string {
	return net.JoinHostPort(p.cfg.Host, fmt.Sprintf("%d", p.cfg.Port))
}

func (p *SMTPProvider) Send(ctx context.Context, n EmailNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	if err := smtp.SendMail(p.addr(), auth, n.From, []string{n.To}, BuildMessage(n)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.To, err)
	}
	return nil
}

// Check dials the relay and says hello
func (p *SMTPProvider) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", p.addr())
	if err != nil {
		return fmt.Errorf("failed to reach smtp server: %w", err)
	}
	c, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open smtp session: %w", err)
	}
	defer c.Close()
	return c.Hello("localhost")
}

// BuildMessage renders a RFC 5322 message, multipart/alternative when both bodies are set
func BuildMessage(n EmailNotification) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.From + "\r\n")
	b.WriteString("To: " + n.To + "\r\n")
	b.WriteString("Subject: " + n.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case n.HTMLBody != "" && n.TextBody != "":
		boundary := fmt.Sprintf("shopflow-%d", time.Now().UnixNano())
		b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n\r\n")
		b.WriteString("--" + boundary + "\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(n.TextBody + "\r\n")
		b.WriteString("--" + boundary + "\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(n.HTMLBody + "\r\n")
		b.WriteString("--" + boundary + "--\r\n")
	case n.HTMLBody != "":
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(n.HTMLBody)
	default:
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(n.TextBody)
	}
	return []byte(b.String())
}

// MockEmailProvider records emails in memory for development and tests
type MockEmailProvider struct {
	mu   sync.Mutex
	Sent []EmailNotification
	Err  error
}

func (m *MockEmailProvider) Name() string { return "mock" }

func (m *MockEmailProvider) Send(ctx context.Context, n EmailNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, n)
	return nil
}

// Count returns how many emails were recorded
func (m *MockEmailProvider) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
