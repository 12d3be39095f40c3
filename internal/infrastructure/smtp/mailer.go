package smtp

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/stocklaabh/verify-api/internal/config"
)

// Mailer delivers one-time verification codes over email. The OTP subject
// and body template live here so every outbound channel owns its own copy.
type Mailer interface {
	SendOTP(to, code string, ttl time.Duration) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

// otpMessage renders the subject and body for a verification code email.
func otpMessage(code string, ttl time.Duration) (subject, body string) {
	subject = "Stock Laabh verification code"
	body = fmt.Sprintf("Your Stock Laabh verification code is %s. It expires in %d minutes.",
		code, int(ttl.Minutes()))
	return subject, body
}

func (m *mailer) SendOTP(to, code string, ttl time.Duration) error {
	subject, body := otpMessage(code, ttl)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
