// Package mailer delivers one-time verification codes by e-mail.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"time"

	"github.com/wneessen/go-mail"
)

const otpSubject = "Your 2-Step Verification Code"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: sans-serif; padding: 20px; border: 1px solid #eee; border-radius: 10px;">
  <h2 style="color: #0D9488;">{{.Brand}}</h2>
  <p>Your 6-digit verification code is:</p>
  <h1 style="letter-spacing: 5px; color: #1E293B;">{{.Code}}</h1>
  <p>This code expires in {{.Minutes}} minutes. If you did not request this, please secure your account.</p>
</div>`))

type otpView struct {
	Brand   string
	Code    string
	Minutes int
}

func renderOTP(brand, code string, ttl time.Duration) (string, error) {
	view := otpView{
		Brand:   brand,
		Code:    code,
		Minutes: int(math.Ceil(ttl.Minutes())),
	}

	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render otp email: %w", err)
	}
	return buf.String(), nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	Timeout  time.Duration
}

// sender is the part of *mail.Client the SMTP mailer needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends codes through an authenticated SMTP relay.
type SMTPMailer struct {
	client sender
	cfg    SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, cfg: cfg}, nil
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to string, code string, ttl time.Duration) error {
	msg, err := m.buildOTP(to, code, ttl)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildOTP(to, code string, ttl time.Duration) (*mail.Msg, error) {
	body, err := renderOTP(m.cfg.FromName, code, ttl)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.Username); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(otpSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	return msg, nil
}

// LogMailer writes codes to the log instead of sending them. It is only
// wired in development when no SMTP relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(ctx context.Context, to string, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "development mailer: verification code",
		"to", to,
		"dev_code", code,
		"ttl", ttl.String(),
	)
	return nil
}
