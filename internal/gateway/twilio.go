package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"

	whatsappPrefix = "whatsapp:"
)

// messageCreator is the slice of the Twilio REST client used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio delivers reminders over Twilio SMS or WhatsApp.
type Twilio struct {
	api     messageCreator
	from    string
	channel string
	region  string
}

func NewTwilio(accountSID, authToken, from, channel, region string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return newTwilio(client.Api, from, channel, region)
}

func newTwilio(api messageCreator, from, channel, region string) *Twilio {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		channel = ChannelWhatsApp
	}

	return &Twilio{
		api:     api,
		from:    from,
		channel: channel,
		region:  strings.ToUpper(region),
	}
}

// NormalizePhone parses a raw phone number and returns it in E.164 form.
// Numbers without a country code are read in the given default region.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", reminder.ErrInvalidPhone, raw, err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", reminder.ErrInvalidPhone, raw)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (t *Twilio) address(e164 string) string {
	if t.channel != ChannelWhatsApp || strings.HasPrefix(e164, whatsappPrefix) {
		return e164
	}

	return whatsappPrefix + e164
}

type createResult struct {
	msg *twilioApi.ApiV2010Message
	err error
}

// Send returns the Twilio message SID. The Twilio client takes no context, so
// a send still in flight when ctx ends is reported as failed.
func (t *Twilio) Send(ctx context.Context, phone, text string) (string, error) {
	to, err := NormalizePhone(phone, t.region)
	if err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(t.address(to))
	params.SetFrom(t.address(t.from))
	params.SetBody(text)

	done := make(chan createResult, 1)

	go func() {
		msg, err := t.api.CreateMessage(params)
		done <- createResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("sending message: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("sending message: %w", res.err)
		}

		if res.msg == nil {
			return "", errors.New("sending message: empty response")
		}

		if res.msg.ErrorCode != nil && *res.msg.ErrorCode != 0 {
			reason := ""
			if res.msg.ErrorMessage != nil {
				reason = *res.msg.ErrorMessage
			}

			return "", fmt.Errorf("sending message: twilio error %d: %s", *res.msg.ErrorCode, reason)
		}

		if res.msg.Sid == nil || *res.msg.Sid == "" {
			return "", errors.New("sending message: response has no message sid")
		}

		return *res.msg.Sid, nil
	}
}
