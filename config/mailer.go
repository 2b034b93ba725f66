package config

import (
	"errors"
	"io"

	"gopkg.in/gomail.v2"
)

// MailAttachment is an in-memory file attached to an outgoing mail.
type MailAttachment struct {
	FileName string
	Content  []byte
}

// Mail is one outgoing message.
type Mail struct {
	To          string
	Subject     string
	HTML        string
	Attachments []MailAttachment
}

// MailSender delivers a Mail. The SMTP implementation is SMTPMailer; tests swap in fakes.
type MailSender interface {
	Send(m Mail) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(s MailSettings) (*SMTPMailer, error) {
	if s.Host == "" || s.User == "" {
		return nil, errors.New("mail host and user are required")
	}
	from := s.From
	if from == "" {
		from = s.User
	}
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	// port 465 is implicit TLS
	d.SSL = s.Port == 465
	return &SMTPMailer{dialer: d, from: from}, nil
}

func (m *SMTPMailer) Send(mail Mail) error {
	if mail.To == "" {
		return errors.New("recipient is required")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/html", mail.HTML)
	for _, a := range mail.Attachments {
		content := a.Content
		msg.Attach(a.FileName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	return m.dialer.DialAndSend(msg)
}

var mailer MailSender

// GetMailer lazily builds the SMTP mailer from settings.
func GetMailer() (MailSender, error) {
	if mailer != nil {
		return mailer, nil
	}
	s, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	m, err := NewSMTPMailer(s.Mail)
	if err != nil {
		return nil, err
	}
	mailer = m
	return mailer, nil
}

// SetMailer installs a sender, e.g. a recording fake in tests.
func SetMailer(m MailSender) {
	mailer = m
}
