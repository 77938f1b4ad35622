// Package notify sends the admin and submitter notification mails
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
)

var (
	// ErrNoRecipients is returned when a message has nobody to go to
	ErrNoRecipients = errors.New("message has no recipients")
	// ErrHeaderInjection is returned when a header value contains a line break
	ErrHeaderInjection = errors.New("mail header contains a line break")
)

// Address is a mailbox with an optional display name
type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is a plain text mail
type Message struct {
	From    Address
	To      []string
	ReplyTo []Address
	Subject string
	Body    string
}

// Validate rejects header values that would break out of their header line
func (m Message) Validate() error {
	values := append([]string{m.From.Name, m.From.Email, m.Subject}, m.To...)
	for _, a := range m.ReplyTo {
		values = append(values, a.Name, a.Email)
	}
	for _, v := range values {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%w: %q", ErrHeaderInjection, v)
		}
	}
	return nil
}

// Bytes renders the message as RFC 5322 text
func (m Message) Bytes(now time.Time) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	writeHeader := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	writeHeader("From", m.From.String())
	writeHeader("To", strings.Join(m.To, ", "))
	if len(m.ReplyTo) > 0 {
		replyTo := make([]string, len(m.ReplyTo))
		for i, a := range m.ReplyTo {
			replyTo[i] = a.String()
		}
		writeHeader("Reply-To", strings.Join(replyTo, ", "))
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=UTF-8")
	writeHeader("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), nil
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through an SMTP relay
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	send SendFunc
}

// NewSMTPMailer creates a mailer for the configured relay
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		auth: auth,
		send: smtp.SendMail,
	}
}

// WithSendFunc replaces the transport, used by tests
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	raw, err := msg.Bytes(start)
	if err != nil {
		return err
	}
	err = m.send(m.addr, m.auth, msg.From.Email, msg.To, raw)
	monitoring.RecordExternalCall("smtp", "send", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", m.addr, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them and keeps a copy
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	slog.InfoContext(ctx, "Mail delivered to log",
		"from", msg.From.String(),
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}

// Sent returns the messages seen so far
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// NewMailer picks the transport named in the configuration
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Transport {
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "log", "":
		return NewLogMailer(), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
