package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/ReviewGo/pkg/httpclient"
)

// SlackSink posts a short message to a Slack incoming webhook.
type SlackSink struct {
	client     httpclient.Doer
	webhookURL string
}

// NewSlackSink creates a Slack sink posting to webhookURL.
func NewSlackSink(client httpclient.Doer, webhookURL string) *SlackSink {
	return &SlackSink{client: client, webhookURL: webhookURL}
}

func (s *SlackSink) Name() string { return "slack" }

type slackMessage struct {
	Text string `json:"text"`
}

func (s *SlackSink) Send(ctx context.Context, event *Event) error {
	text := fmt.Sprintf("*%s*\nReview `%s` for company `%s` (%d/5)",
		event.Subject(), event.ReviewID, event.CompanyID, event.Rating)
	if event.Reason != "" {
		text += "\nReason: " + event.Reason
	}

	payload, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}
	req, err := httpclient.NewJSONRequest(ctx, s.webhookURL, payload, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	return httpclient.CheckResponse(resp, "slack")
}
