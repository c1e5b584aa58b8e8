package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// Mailer sends transactional emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// SMTPMailer sends HTML emails through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", cfg.Sender)
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := m.send(addr, auth, m.cfg.Sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return fmt.Errorf("send mail: %w", err)
	}
	log.Infof("[Mail] Email sent to %s via %s", to, addr)
	return nil
}

// Message is a mail captured by LogMailer.
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogMailer logs mails instead of sending them. Used when no SMTP host is
// configured; it also keeps them for inspection.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (l *LogMailer) Send(_ context.Context, to, subject, body string) error {
	l.mu.Lock()
	l.sent = append(l.sent, Message{To: to, Subject: subject, Body: body})
	l.mu.Unlock()
	log.Infof("[Mail] (log only) to=%s subject=%q", to, subject)
	return nil
}

func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}

// New picks the SMTP mailer when a host is configured.
func New(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		return &LogMailer{}
	}
	return NewSMTPMailer(cfg)
}
