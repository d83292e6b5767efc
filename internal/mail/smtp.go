// Package mail implements the outbound mail collaborators: a direct SMTP
// sender, a log-only sender for environments without a mail server, and a
// queue-backed sender that defers delivery to the background consumer.
package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/haldane-systems/carecircle-server/internal/config"
)

// SMTPSender delivers plain-text mail over SMTP. It is used by the queue
// consumer, not by request handlers; auth flows publish to the queue so a
// slow or down mail server cannot stall a request.
type SMTPSender struct {
	cfg config.Mail
}

func NewSMTPSender(cfg config.Mail) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp is not configured")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}

// LogSender writes mail to the process log instead of delivering it.
// Dev-only stand-in selected when SMTP_HOST is unset.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail (not delivered, smtp unconfigured): to=%s subject=%q body=%q", to, subject, body)
	return nil
}
