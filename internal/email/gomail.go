package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the gomail sender.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type smtpService struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPService builds an email sender over SMTP.
func NewSMTPService(cfg SMTPConfig) Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *smtpService) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	// gomail has no context support; bound the dial-and-send ourselves.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	timeout := s.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("email send timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
