package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/gaming-portal/utils"
)

// EmailTransport sends one HTML email. Retries, if any, happen inside the
// transport.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, html string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer renders a MIME message and submits it over SMTP.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	Attempts int
	Backoff  time.Duration

	send sendFunc
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		Attempts: 3,
		Backoff:  2 * time.Second,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	sender, msg, err := m.compose(to, subject, html)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))

	attempts := m.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err = m.send(addr, auth, sender, []string{to}, msg)
		if err == nil {
			return nil
		}
		if i == attempts {
			return fmt.Errorf("smtp send to %s after %d attempts: %w", to, attempts, err)
		}
		utils.ErrorLogger.WithFields(logrus.Fields{"to": to, "attempt": i}).Warnf("SMTP send failed: %v", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Backoff * time.Duration(i)):
		}
	}
}

// compose returns the envelope sender and the rendered message.
func (m *SMTPMailer) compose(to, subject, html string) (string, []byte, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return "", nil, fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return "", nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{rcpt})
	h.SetSubject(subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", nil, err
	}
	if _, err := io.WriteString(w, html); err != nil {
		return "", nil, err
	}
	if err := w.Close(); err != nil {
		return "", nil, err
	}
	return from.Address, buf.Bytes(), nil
}

// LogMailer logs emails instead of sending them. Used when SMTP is not
// configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	utils.InfoLogger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email not sent, SMTP disabled")
	return nil
}
