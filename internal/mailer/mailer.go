package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/gomail.v2"
)

// MaxAttachmentSize is the hard limit for outbound attachments.
const MaxAttachmentSize = 5 << 20 // 5 MiB

// ErrAttachmentTooLarge is returned for attachments over MaxAttachmentSize.
// It is a permanent failure; retrying will not help.
var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

// Message is one outbound email.
type Message struct {
	From           string
	To             string
	Subject        string
	HTML           string
	Text           string
	AttachmentPath string
}

// Mailer delivers messages over the campaign's transport.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTP sends messages through a single authenticated SMTP account.
type SMTP struct {
	dialer  *gomail.Dialer
	timeout time.Duration
	logger  *slog.Logger
}

// NewSMTP creates an SMTP mailer. Port 465 uses implicit TLS; other ports
// rely on gomail's STARTTLS negotiation.
func NewSMTP(host string, port int, username, password string, logger *slog.Logger) *SMTP {
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = port == 465

	return &SMTP{
		dialer:  d,
		timeout: 30 * time.Second,
		logger:  logger.With("component", "mailer", "host", host),
	}
}

// Send delivers one message. The dial and transmission are bounded by the
// context and by the mailer's own timeout, whichever ends first; a hung
// transport surfaces as an error, never a stuck goroutine holding a lead.
func (s *SMTP) Send(ctx context.Context, msg *Message) error {
	m, err := build(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send timed out: %w", ctx.Err())
	}
}

func build(msg *Message) (*gomail.Message, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	if msg.AttachmentPath != "" {
		info, err := os.Stat(msg.AttachmentPath)
		if err != nil {
			return nil, fmt.Errorf("attachment unreadable: %w", err)
		}
		if info.Size() > MaxAttachmentSize {
			return nil, fmt.Errorf("%s: %w", filepath.Base(msg.AttachmentPath), ErrAttachmentTooLarge)
		}
		m.Attach(msg.AttachmentPath)
	}

	return m, nil
}

// Notifier sends plain-text operator notifications over a mailer.
type Notifier struct {
	mailer Mailer
	from   string
	to     string
	logger *slog.Logger
}

// NewNotifier creates a notifier addressed to the campaign's notify target.
func NewNotifier(m Mailer, from, to string, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: m, from: from, to: to, logger: logger.With("component", "notifier")}
}

// Notify sends a notification. Failures are logged, never propagated: a
// broken notification channel must not fail the tracking request that
// triggered it.
func (n *Notifier) Notify(ctx context.Context, subject, body string) {
	err := n.mailer.Send(ctx, &Message{
		From:    n.from,
		To:      n.to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		n.logger.Error("failed to send notification", "subject", subject, "error", err)
	}
}
