// Package notify sends project notifications by email.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/metrics"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// ErrNotConfigured is returned on send when the relay settings are missing.
var ErrNotConfigured = errors.New("mail relay is not configured")

const senderName = "PJ管理システム"

// Config holds the relay settings. They are checked on each send.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	To       string
}

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers HTML mail through an SMTP relay with PLAIN auth.
type Mailer struct {
	cfg  Config
	send SendFunc
	now  func() time.Time
	log  *logger.Logger
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(m *Mailer) { m.send = fn }
}

// New creates a Mailer.
func New(cfg Config, log *logger.Logger, opts ...Option) *Mailer {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	m := &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now, log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mailer) validate() error {
	var missing []string
	if m.cfg.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if m.cfg.User == "" {
		missing = append(missing, "EMAIL_USER")
	}
	if m.cfg.Password == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if m.cfg.To == "" {
		missing = append(missing, "EMAIL_TO")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Send delivers one HTML message to the configured recipient.
func (m *Mailer) Send(ctx context.Context, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}
	port := m.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(port))
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	to := splitAddresses(m.cfg.To)
	msg := m.compose(to, subject, html)
	if err := m.send(addr, auth, m.cfg.User, to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// ProjectCreated sends the new-project notification for p.
func (m *Mailer) ProjectCreated(ctx context.Context, p project.Project) error {
	mail, err := export.ProjectCreatedEmail(p)
	if err == nil {
		err = m.Send(ctx, mail.Subject, mail.HTML)
	}
	metrics.RecordEmail(err)
	entry := m.log.WithContext(ctx).WithField("pj_number", p.Number)
	if err != nil {
		entry.WithError(err).Warn("notification email failed")
		return err
	}
	entry.Info("notification email sent")
	return nil
}

func (m *Mailer) compose(to []string, subject, html string) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", mime.QEncoding.Encode("utf-8", senderName)+" <"+m.cfg.User+">")
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "base64")
	b.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(html))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded + "\r\n")
	return b.Bytes()
}

func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
