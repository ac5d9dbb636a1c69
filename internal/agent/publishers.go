package agent

import (
	"fmt"

	"github.com/carlosprados/pmcontrol/internal/config"
	"github.com/carlosprados/pmcontrol/internal/events"
)

// BuildPublisher connects the broker publishers enabled in ev. It returns
// nil when none is configured.
func BuildPublisher(ev config.Events, clientID string) (events.Publisher, error) {
	var pubs events.Multi
	if ev.NATSURL != "" {
		p, err := events.NewNATS(ev.NATSURL, ev.Subject, clientID)
		if err != nil {
			return nil, fmt.Errorf("nats publisher: %w", err)
		}
		pubs = append(pubs, p)
	}
	if ev.MQTTBroker != "" {
		p, err := events.NewMQTT(ev.MQTTBroker, ev.Subject, clientID)
		if err != nil {
			_ = pubs.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		pubs = append(pubs, p)
	}
	if len(pubs) == 0 {
		return nil, nil
	}
	return pubs, nil
}
