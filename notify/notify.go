// Package notify dispatches violation alerts to external services through
// shoutrrr URLs (telegram, discord, smtp and friends).
package notify

import (
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/pkg/errors"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/monitor"
)

const defaultTimeout = 10 * time.Second

// Notifier fans one alert out to all configured service URLs.
type Notifier struct {
	sender *router.ServiceRouter
}

// New validates the service URLs and builds the sender.
func New(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create notification sender")
	}
	sender.Timeout = defaultTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Notifier{sender: sender}, nil
}

// NotifyAlert sends one violation alert to every configured service. The
// first delivery error is returned; remaining services are still attempted
// by the router.
func (n *Notifier) NotifyAlert(sessionID string, alert monitor.Alert) error {
	body := fmt.Sprintf("%s (session %s, confidence %.2f, %s)",
		alert.Message, sessionID, alert.Confidence, alert.Timestamp.Format(time.RFC3339))

	params := stypes.Params{}
	params.SetTitle("Exam violation: " + string(alert.Kind))

	for _, err := range n.sender.Send(body, &params) {
		if err != nil {
			return errors.Wrap(err, "notification delivery failed")
		}
	}
	return nil
}
