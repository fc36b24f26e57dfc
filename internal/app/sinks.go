package app

import (
	"log/slog"

	"github.com/utafrali/ReviewGo/internal/config"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/pkg/httpclient"
)

// directSinks builds the sinks that reach people and external systems,
// in the order they are tried. HTTP sinks get their own circuit breaker so
// an unreachable endpoint stops costing a timeout per event.
func directSinks(cfg *config.Config, users notify.UserLookup, logger *slog.Logger) []notify.Sink {
	var sinks []notify.Sink

	if cfg.NotifyEmail {
		sinks = append(sinks, notify.NewEmailSink(notify.NewDialer(cfg.Email()), users, cfg.SMTPFrom, cfg.AdminEmail))
	}
	if cfg.NotifySlack {
		sinks = append(sinks, notify.NewSlackSink(breakerClient("slack", logger), cfg.SlackWebhookURL))
	}
	if cfg.NotifyWebhook {
		sinks = append(sinks, notify.NewWebhookSink(breakerClient("webhook", logger), cfg.WebhookURL, cfg.WebhookSecret))
	}

	return sinks
}

func breakerClient(name string, logger *slog.Logger) httpclient.Doer {
	return httpclient.NewBreakerClient(httpclient.New(httpclient.DefaultConfig()), httpclient.DefaultBreakerConfig(name), logger)
}

func sinkNames(sinks []notify.Sink) []string {
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return names
}
