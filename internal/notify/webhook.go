package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/utafrali/ReviewGo/pkg/httpclient"
)

// Headers set on every webhook delivery.
const (
	SignatureHeader = "X-ReviewGo-Signature"
	EventHeader     = "X-ReviewGo-Event"
	DeliveryHeader  = "X-ReviewGo-Delivery"
)

// WebhookSink posts the event JSON to a generic HTTP endpoint, signed with
// HMAC-SHA256 over the body.
type WebhookSink struct {
	client httpclient.Doer
	url    string
	secret []byte
}

// NewWebhookSink creates a webhook sink. An empty secret leaves deliveries
// unsigned.
func NewWebhookSink(client httpclient.Doer, url, secret string) *WebhookSink {
	return &WebhookSink{client: client, url: url, secret: []byte(secret)}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	headers := map[string]string{
		EventHeader:    string(event.Type),
		DeliveryHeader: event.ID,
	}
	if len(s.secret) > 0 {
		headers[SignatureHeader] = Sign(s.secret, payload)
	}

	req, err := httpclient.NewJSONRequest(ctx, s.url, payload, headers)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	return httpclient.CheckResponse(resp, "webhook")
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
