package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

// New returns a mailer. An empty host disables sending; messages are only logged.
func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

func (m *Mailer) SendNotificationEmail(ctx context.Context, recipientEmail, recipientName, message string) error {
	subject := "⚽ Nova notificação no MatchScore"
	body := fmt.Sprintf("Olá, %s!\n\n%s\n\nAcesse o MatchScore para ver os detalhes.", recipientName, message)
	return m.deliver(ctx, recipientEmail, subject, body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, recipientEmail, link string) error {
	subject := "🔑 Redefinição de senha"
	body := fmt.Sprintf("Olá!\n\nRecebemos um pedido para redefinir sua senha. Use o link abaixo:\n%s\n\nSe não foi você, ignore este e-mail.", link)
	return m.deliver(ctx, recipientEmail, subject, body)
}

func (m *Mailer) deliver(ctx context.Context, recipientEmail, subject, body string) error {
	if !m.Enabled() {
		m.log.Debug().Str("email", recipientEmail).Str("subject", subject).Msg("mailer disabled, skipping e-mail")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, recipientEmail, subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{recipientEmail}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("email", recipientEmail).Msg("failed to send e-mail")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", recipientEmail).Str("subject", subject).Msg("📧 e-mail sent")
	return nil
}
