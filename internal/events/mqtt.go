package events

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTPublisher publishes events as JSON on <topic>/<event type> at QoS 1.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTT connects to broker, e.g. "tcp://127.0.0.1:1883".
func NewMQTT(broker, topic, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		})
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, errors.New("timeout"))
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &MQTTPublisher{client: c, topic: topic}, nil
}

func (p *MQTTPublisher) Publish(e Event) {
	b, err := e.Encode()
	if err != nil {
		log.Error().Err(err).Msg("encode event")
		return
	}
	// Fire and forget; the token is not awaited on the monitoring goroutine.
	p.client.Publish(p.topic+"/"+string(e.Type), 1, false, b)
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
