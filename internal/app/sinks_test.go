package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/ReviewGo/internal/config"
)

func TestDirectSinks(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{name: "none enabled", cfg: config.Config{}, want: []string{}},
		{
			name: "all enabled",
			cfg: config.Config{
				NotifyEmail:     true,
				NotifySlack:     true,
				NotifyWebhook:   true,
				SlackWebhookURL: "https://hooks.slack.test/T000",
				WebhookURL:      "https://hooks.example.test/reviews",
				SMTPHost:        "smtp.test",
				SMTPPort:        587,
			},
			want: []string{"email", "slack", "webhook"},
		},
		{
			name: "webhook only",
			cfg:  config.Config{NotifyWebhook: true, WebhookURL: "https://hooks.example.test/reviews"},
			want: []string{"webhook"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sinks := directSinks(&tt.cfg, nil, newTestLogger())

			assert.Equal(t, tt.want, sinkNames(sinks))
		})
	}
}
