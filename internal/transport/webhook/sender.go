package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sandevgo/gavbot/pkg/retry"
)

// Sender delivers replies to the configured callback URL with retries.
// Gateways time out webhooks quickly, so replies often must travel on their
// own request.
type Sender struct {
	url     string
	client  *http.Client
	retrier *retry.Retrier
}

func NewSender(url string) *Sender {
	return &Sender{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		retrier: retry.NewDefaultRetrier(),
	}
}

func (s *Sender) Enabled() bool {
	return s.url != ""
}

type outboundMessage struct {
	ConversationKey string `json:"conversation_key"`
	Reply           string `json:"reply"`
}

func (s *Sender) Send(ctx context.Context, key, reply string) error {
	body, err := json.Marshal(outboundMessage{ConversationKey: key, Reply: reply})
	if err != nil {
		return err
	}

	return s.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("reply delivery failed with status %d", resp.StatusCode)
		}
		return nil
	})
}
