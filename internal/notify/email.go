package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
	// Subject defaults to "Growth changes".
	Subject string `json:"subject"`
}

type sendFunc = func(mail *email.Email, addr string, auth smtp.Auth) error

func send(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// Email sends the rendered changes over SMTP.
type Email struct {
	config EmailConfig
	send   sendFunc
}

func NewEmail(config EmailConfig) (Email, error) {
	if config.Server == "" || config.EmailAddress == "" {
		return Email{}, fmt.Errorf("smtp server and email address are required")
	}
	if len(config.To) == 0 {
		return Email{}, fmt.Errorf("no recipients specified")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Subject == "" {
		config.Subject = "Growth changes"
	}
	return Email{config: config, send: send}, nil
}

func (e Email) message(report Report) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("growthwatch <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = fmt.Sprintf("%s (run %d)", e.config.Subject, report.RunID)

	body := fmt.Sprintf(
		"%s at %s\n\n%s\n",
		report.Summary(),
		report.Time.Format("2006-01-02 15:04:05 MST"),
		RenderChanges(report.Changes),
	)
	mail.Text = []byte(body)
	return mail
}

func (e Email) Notify(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := e.message(report)
	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)
	err := e.send(
		mail,
		addr,
		smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
