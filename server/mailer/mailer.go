package mailer

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/snzark/crm/server/logger"
	"github.com/snzark/crm/shared"
	"github.com/snzark/crm/utils"
	"gopkg.in/gomail.v2"
)

const DEFAULT_SENDER = "no-reply@snz.ark"

var logg = logger.NewLogger()

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Mailer delivers a single message.
type Mailer interface {
	Send(msg Message) error
}

// NewMailer returns an SMTP mailer, or one that only logs when devMode is
// set or no SMTP host is configured.
func NewMailer(config shared.SmtpConfig, devMode bool) Mailer {
	if devMode || config.Host == "" {
		logg.Info("Using development email transport")
		return &LogMailer{}
	}
	return NewSMTPMailer(config)
}

type SMTPMailer struct {
	config shared.SmtpConfig
	dial   func() (gomail.SendCloser, error)
}

func NewSMTPMailer(config shared.SmtpConfig) *SMTPMailer {
	config.From = utils.FirstNonEmpty(config.From, DEFAULT_SENDER)
	dialer := gomail.NewDialer(config.Host, config.Port, config.User, config.Password)
	return &SMTPMailer{config: config, dial: dialer.Dial}
}

func (m *SMTPMailer) Send(msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	sender, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server %v: %v", m.config.Host, err)
	}
	defer sender.Close()

	err = gomail.Send(sender, msg.gomailMessage(m.config.From))
	if err != nil {
		return fmt.Errorf("failed to send mail to %v: %v", msg.To, err)
	}

	logg.Infof("Mail %q sent to %v", msg.Subject, msg.To)
	return nil
}

// LogMailer records & logs messages instead of sending them.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *LogMailer) Send(msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)
	logg.Infof("Would send email to %v with subject %q", msg.To, msg.Subject)
	return nil
}

func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Message{}, m.sent...)
}

// VerificationMessage asks a new user to confirm their email address.
func VerificationMessage(to, verificationLink string) Message {
	return Message{
		To:      to,
		Subject: "Welcome! Please verify your Email :)",
		Text:    fmt.Sprintf("Open the link to confirm your registration: %s", verificationLink),
		HTML:    fmt.Sprintf(`<p>Click on the link to confirm your registration</p><a href="%s">HERE</a>`, html.EscapeString(verificationLink)),
	}
}

// ImportFinishedMessage tells a user how many contacts their CSV import created.
func ImportFinishedMessage(to, firstName string, imported int) Message {
	return Message{
		To:      to,
		Subject: "Your contacts import is complete",
		Text:    fmt.Sprintf("Hi %s, %d contacts were imported into your CRM.", firstName, imported),
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p><b>%d</b> contacts were imported into your CRM.</p>", html.EscapeString(firstName), imported),
	}
}

func (msg Message) validate() error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}
	if strings.ContainsAny(msg.To+msg.Subject, "\r\n") {
		return errors.New("mail headers must not contain line breaks")
	}
	return nil
}

// gomailMessage builds a multipart/alternative message; gomail encodes the
// headers and quoted-printable bodies.
func (msg Message) gomailMessage(from string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}
