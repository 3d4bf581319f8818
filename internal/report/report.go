// Package report delivers session summaries to the booking desk by email.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/irislabs/iris/internal/models"
)

// Sender delivers a session report to the booking desk.
type Sender interface {
	Send(ctx context.Context, r models.Report) error
}

// LogSender logs reports instead of delivering them. Used when no SMTP
// server is configured.
type LogSender struct{}

// Send logs the report summary.
func (LogSender) Send(ctx context.Context, r models.Report) error {
	slog.Warn("Report dropped, no mail transport configured",
		"name", r.DisplayName, "channel", r.Channel, "department", r.Session.Department, "requests", len(r.Requests))
	return nil
}

const mailTemplate = `From: {{.From}}
To: {{.To}}
Subject: Report - {{.Name}}

Channel: {{.Report.Channel}}
Language: {{.Report.Language}}
Department: {{.Report.Session.Department}}
{{- if .Report.Session.ConfirmationNumber}}
Confirmation number: {{.Report.Session.ConfirmationNumber}}
{{- end}}
Opened: {{.Report.Session.CreatedAt.Format "2006-01-02 15:04:05 MST"}}

Requests:
{{- range .Report.Requests}}
- {{.Body}}
{{- end}}
`

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Opts holds the mailer's configurable fields.
type Opts struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	SendMail sendFunc
}

// Option configures the SMTP mailer.
type Option func(*Opts)

// WithServer sets the SMTP host and port.
func WithServer(host string, port int) Option {
	return func(o *Opts) { o.Host = host; o.Port = port }
}

// WithCredentials sets the SMTP authentication credentials.
func WithCredentials(username, password string) Option {
	return func(o *Opts) { o.Username = username; o.Password = password }
}

// WithFrom sets the report sender address.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithTo sets the booking desk recipient address.
func WithTo(to string) Option {
	return func(o *Opts) { o.To = to }
}

// WithSendMail injects the mail transport, used by tests.
func WithSendMail(fn sendFunc) Option {
	return func(o *Opts) { o.SendMail = fn }
}

// Mailer sends reports over SMTP.
type Mailer struct {
	addr     string
	auth     smtp.Auth
	from     string
	to       string
	sendMail sendFunc
	tmpl     *template.Template
}

// NewMailer creates an SMTP-backed report sender.
func NewMailer(opts ...Option) (*Mailer, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("SMTP host, from and to must be set")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.SendMail == nil {
		cfg.SendMail = smtp.SendMail
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	tmpl, err := template.New("report").Parse(mailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	return &Mailer{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:     auth,
		from:     cfg.From,
		to:       cfg.To,
		sendMail: cfg.SendMail,
		tmpl:     tmpl,
	}, nil
}

// Send renders and mails the report. The subject names the customer so the
// desk can triage by sender.
func (m *Mailer) Send(ctx context.Context, r models.Report) error {
	name := r.DisplayName
	if name == "" {
		name = r.RecipientID
	}

	var body strings.Builder
	err := m.tmpl.Execute(&body, struct {
		From   string
		To     string
		Name   string
		Report models.Report
	}{From: m.from, To: m.to, Name: name, Report: r})
	if err != nil {
		return fmt.Errorf("render report mail: %w", err)
	}

	msg := strings.ReplaceAll(body.String(), "\n", "\r\n")
	if err := m.sendMail(m.addr, m.auth, m.from, []string{m.to}, []byte(msg)); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}
	slog.Info("Report mailed", "name", name, "channel", r.Channel, "requests", len(r.Requests))
	return nil
}
