package twilio

import (
	"fmt"

	"github.com/snzark/crm/server/logger"
	"github.com/snzark/crm/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var logg = logger.NewLogger()

// Notifier sends a text message to a phone number.
type Notifier interface {
	SendMessage(to, msg string) error
}

// NewNotifier returns a twilio backed notifier, or a logging one when
// twilio is not configured or devMode is set.
func NewNotifier(config shared.TwilioConfig, devMode bool) Notifier {
	if devMode || config.AccountSid == "" {
		return &LogNotifier{}
	}
	return NewClient(config)
}

type ClientWrapper struct {
	client *twilio.RestClient
	config shared.TwilioConfig
}

func NewClient(config shared.TwilioConfig) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{client: client, config: config}
}

func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio: %v", *resp.ErrorMessage)
	}

	return nil
}

// LogNotifier logs messages instead of sending them.
type LogNotifier struct {
	Sent []string
}

func (ln *LogNotifier) SendMessage(to, msg string) error {
	logg.Infof("[sms] to=%v body=%q", to, msg)
	ln.Sent = append(ln.Sent, to+": "+msg)
	return nil
}
