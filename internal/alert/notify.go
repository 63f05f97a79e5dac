package alert

import (
	"fmt"
	"log/slog"

	"github.com/nicholas-fedor/shoutrrr"
)

// Notifier delivers alerts to configured shoutrrr service URLs.
type Notifier struct {
	urls     []string
	template string
	logger   *slog.Logger
}

// NewNotifier creates a Notifier. An empty URL list yields a no-op
// notifier; an empty template falls back to DefaultTemplate.
func NewNotifier(urls []string, tmpl string, logger *slog.Logger) *Notifier {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	return &Notifier{urls: urls, template: tmpl, logger: logger}
}

// Notify renders the alert message and sends it to every configured
// service. Delivery failures are collected, not fatal.
func (n *Notifier) Notify(a Alert) error {
	if len(n.urls) == 0 {
		return nil
	}

	msg, err := Render(n.template, a)
	if err != nil {
		return fmt.Errorf("rendering alert message: %w", err)
	}

	var firstErr error
	for _, url := range n.urls {
		sender, err := shoutrrr.CreateSender(url)
		if err != nil {
			n.logger.Error("creating notification sender", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, sendErr := range sender.Send(msg, nil) {
			if sendErr != nil {
				n.logger.Error("sending notification", "error", sendErr)
				if firstErr == nil {
					firstErr = sendErr
				}
			}
		}
	}
	return firstErr
}
