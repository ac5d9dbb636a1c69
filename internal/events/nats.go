package events

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATS connects to url. The connection reconnects forever in the
// background; publishes while disconnected are buffered by the client.
func NewNATS(url, subject, clientName string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("url", url).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(e Event) {
	b, err := e.Encode()
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	if err := p.nc.Publish(p.subject+"."+string(e.Type), b); err != nil {
		log.Warn().Err(err).Str("subject", p.subject).Msg("nats publish failed")
	}
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
