// Package notify is the email side channel. Delivery is best effort by
// contract: with no SMTP configured, or on any send error, notifications
// degrade to a log line and never fail the triggering request.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"ampflux/internal/logs"
)

type Mailer interface {
	Send(to, subject, body string)
}

// SMTPConfig carries the relay settings; an empty Host disables delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type smtpMailer struct{ cfg SMTPConfig }

type logMailer struct{}

// New picks the SMTP mailer when a relay is configured, the log-only
// fallback otherwise.
func New(cfg SMTPConfig) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return logMailer{}
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(to, subject, body string) {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)
	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		logs.Logger.Errorf("mail send failed: to=%s subject=%q err=%v", to, subject, err)
	}
}

func (logMailer) Send(to, subject, body string) {
	logs.Logger.Infof("[EMAIL to %s] %s: %s", to, subject, body)
}

// -------- message templates --------

func Welcome(m Mailer, to, name string) {
	m.Send(to, "Welcome to AmpFlux",
		fmt.Sprintf("Hi %s, your account has been created. You can now start designing circuits.", name))
}

func ShareInvite(m Mailer, to, projectName, byName string) {
	m.Send(to, fmt.Sprintf("Project %q shared with you", projectName),
		fmt.Sprintf("%s shared the project %q with you. Accept or decline the invitation from your dashboard.", byName, projectName))
}

func AccountInvite(m Mailer, to, companyName string) {
	m.Send(to, fmt.Sprintf("You have been invited to %s on AmpFlux", companyName),
		fmt.Sprintf("An administrator of %s invited you to join. Register with this email address to get started.", companyName))
}
