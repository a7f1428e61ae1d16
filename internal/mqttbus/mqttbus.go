package mqttbus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/config"
)

const (
	publishTimeout = 5 * time.Second
	onlinePayload  = "online"
	offlinePayload = "offline"
)

var ErrTimeout = errors.New("mqtt operation timed out")

// Handler receives every message on a subscribed topic. It runs on paho's
// goroutine and must not block.
type Handler func(topic string, payload []byte)

// Bus owns the broker connection. Subscriptions are (re)made on every connect so a
// reconnect with a clean session keeps receiving commands.
type Bus struct {
	client            mqtt.Client
	qos               byte
	availabilityTopic string
	topics            []string
	handler           Handler
}

var newClient = mqtt.NewClient

func New(cfg config.MQTT, handler Handler, topics ...string) *Bus {
	b := &Bus{
		qos:               cfg.QoS,
		availabilityTopic: cfg.AvailabilityTopic,
		topics:            topics,
		handler:           handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(cfg.AvailabilityTopic, offlinePayload, cfg.QoS, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("Lost MQTT connection")
	})

	b.client = newClient(opts)
	return b
}

// Connect starts the connection. With connect-retry enabled paho keeps trying in the
// background, so a broker that is down at boot only delays the first subscribe.
func (b *Bus) Connect(timeout time.Duration) error {
	token := b.client.Connect()
	if !token.WaitTimeout(timeout) {
		log.Warn().Dur("timeout", timeout).Msg("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connection failed: %w", err)
	}
	return nil
}

func (b *Bus) onConnect(c mqtt.Client) {
	log.Info().Msg("Connected to MQTT")
	c.Publish(b.availabilityTopic, b.qos, true, onlinePayload)

	for _, topic := range b.topics {
		token := c.Subscribe(topic, b.qos, b.onMessage)
		if !token.WaitTimeout(publishTimeout) {
			log.Error().Str("topic", topic).Msg("Timed out subscribing")
			continue
		}
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe")
			continue
		}
		log.Info().Str("topic", topic).Msg("Subscribed")
	}
}

func (b *Bus) onMessage(_ mqtt.Client, msg mqtt.Message) {
	log.Debug().Str("topic", msg.Topic()).Int("bytes", len(msg.Payload())).Msg("MQTT message received")
	b.handler(msg.Topic(), msg.Payload())
}

// Publish sends a non-retained message and waits for the broker to accept it.
func (b *Bus) Publish(topic string, payload []byte) error {
	if !b.client.IsConnected() {
		return fmt.Errorf("publish to %s: not connected", topic)
	}
	token := b.client.Publish(topic, b.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) IsConnected() bool {
	return b.client.IsConnected()
}

// Disconnect marks the device offline and closes the connection.
func (b *Bus) Disconnect() {
	if b.client.IsConnected() {
		b.client.Publish(b.availabilityTopic, b.qos, true, offlinePayload).WaitTimeout(time.Second)
	}
	b.client.Disconnect(250)
	log.Info().Msg("Disconnected from MQTT")
}
