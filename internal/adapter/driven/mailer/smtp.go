// Package mailer implements the Mailer port: digests are rendered from
// markdown to sanitized HTML and delivered over SMTP, or logged when no SMTP
// server is configured.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Mailer = (*SMTPMailer)(nil)

// SMTPConfig holds the SMTP submission settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers messages through an SMTP submission server. The
// connection is upgraded with STARTTLS whenever the server offers it.
type SMTPMailer struct {
	cfg      SMTPConfig
	now      func() time.Time
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTPMailer. From defaults to Username.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg, now: time.Now, sendMail: smtp.SendMail}
}

// Send renders msg and submits it. net/smtp has no context support, so ctx
// is only checked before the connection is opened.
func (m *SMTPMailer) Send(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("compose message to %s: %w", msg.To, err)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	start := time.Now()
	if err := m.sendMail(addr, auth, m.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("send mail to %s via %s: %w", msg.To, addr, err)
	}

	slog.Info("mail sent", "to", msg.To, "subject", msg.Subject, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// compose builds a multipart/alternative message carrying the markdown
// source as text/plain and its rendering as text/html.
func (m *SMTPMailer) compose(msg model.Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", m.cfg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", m.now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `multipart/alternative; boundary="` + mw.Boundary() + `"`},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", msg.Markdown},
		{"text/html; charset=utf-8", htmlDocument(msg.Subject, RenderMarkdown(msg.Markdown))},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}

		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Compile-time interface satisfaction check.
var _ driven.Mailer = (*LogMailer)(nil)

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct{}

// Send logs msg at info level.
func (LogMailer) Send(_ context.Context, msg model.Message) error {
	slog.Info("mail delivery disabled, logging digest",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.Markdown),
	)
	slog.Debug("digest body", "to", msg.To, "markdown", msg.Markdown)
	return nil
}
