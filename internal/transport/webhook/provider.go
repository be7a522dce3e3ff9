package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// InboundMessage is the provider-neutral form of one incoming user message.
type InboundMessage struct {
	Key  string
	Text string
}

type vonagePayload struct {
	MSISDN string `json:"msisdn"`
	From   struct {
		Number string `json:"number"`
	} `json:"from"`
	Message struct {
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Text string `json:"text"`
}

// parseProviderPayload maps one gateway's webhook body onto an inbound
// message. The conversation key is prefixed so the same phone number on two
// providers never collides.
func parseProviderPayload(provider string, r *http.Request) (InboundMessage, error) {
	switch provider {
	case "vonage":
		var p vonagePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return InboundMessage{}, fmt.Errorf("invalid vonage payload: %w", err)
		}
		number := p.MSISDN
		if number == "" {
			number = p.From.Number
		}
		text := p.Message.Content.Text
		if text == "" {
			text = p.Text
		}
		if number == "" || text == "" {
			return InboundMessage{}, fmt.Errorf("vonage payload missing sender or text")
		}
		return InboundMessage{Key: "wa:" + number, Text: text}, nil

	case "twilio":
		if err := r.ParseForm(); err != nil {
			return InboundMessage{}, fmt.Errorf("invalid twilio payload: %w", err)
		}
		from := r.PostFormValue("From")
		body := r.PostFormValue("Body")
		if from == "" || body == "" {
			return InboundMessage{}, fmt.Errorf("twilio payload missing From or Body")
		}
		return InboundMessage{Key: "wa:" + from, Text: body}, nil

	default:
		return InboundMessage{}, fmt.Errorf("unknown provider %q", provider)
	}
}
