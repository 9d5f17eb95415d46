// Package telephony adapts Twilio to the assistant: outbound WhatsApp
// messages, TwiML rendering for the webhooks, request signature validation,
// and inbound media download.
package telephony

import (
	"context"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// WhatsAppPrefix marks identities that are Twilio WhatsApp addresses.
const WhatsAppPrefix = "whatsapp:"

// MessageCreator is the Twilio REST call used to send messages.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// WhatsAppSender sends WhatsApp messages from one Twilio sender address.
type WhatsAppSender struct {
	api  MessageCreator
	from string
}

// NewWhatsAppSender builds a sender from Twilio credentials.
func NewWhatsAppSender(cfg config.TwilioConfig) *WhatsAppSender {
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewWhatsAppSenderWith(rc.Api, cfg.WhatsAppFrom)
}

// NewWhatsAppSenderWith builds a sender over an explicit API.
func NewWhatsAppSenderWith(api MessageCreator, from string) *WhatsAppSender {
	return &WhatsAppSender{api: api, from: from}
}

// Send delivers body to the WhatsApp address to, split into chunks.
func (s *WhatsAppSender) Send(ctx context.Context, to, body string) error {
	for _, chunk := range SplitForWhatsApp(body, MaxWhatsAppChunk) {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &openapi.CreateMessageParams{}
		p.SetTo(to)
		p.SetFrom(s.from)
		p.SetBody(chunk)
		if _, err := s.api.CreateMessage(p); err != nil {
			return fmt.Errorf("twilio: send whatsapp to %s: %w", to, err)
		}
	}
	return nil
}

// Target returns a delivery target for a WhatsApp address.
func (s *WhatsAppSender) Target(to string) *WhatsAppTarget {
	return &WhatsAppTarget{sender: s, to: to}
}

// Fallback resolves "whatsapp:" identities to a target, letting the
// directory reach users who have no open session.
func (s *WhatsAppSender) Fallback(identity string) (dispatch.Target, bool) {
	if !strings.HasPrefix(identity, WhatsAppPrefix) {
		return nil, false
	}
	return s.Target(identity), true
}

// WhatsAppTarget delivers fire notifications as WhatsApp messages.
type WhatsAppTarget struct {
	sender *WhatsAppSender
	to     string
}

// Kind implements dispatch.Target.
func (t *WhatsAppTarget) Kind() string { return "whatsapp" }

// Deliver implements dispatch.Target.
func (t *WhatsAppTarget) Deliver(ctx context.Context, n domain.Notification) error {
	return t.sender.Send(ctx, t.to, ReminderText(n.Data.Text))
}

// ReminderText is the user-facing text of a fired reminder.
func ReminderText(text string) string {
	return "⏰ Recordatorio: " + text
}
