package transport

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MQTTConfig configures the MQTT session.
type MQTTConfig struct {
	Broker       string
	ClientID     string
	CommandTopic string
	// ReconnectInterval is the delay between connection attempts.
	ReconnectInterval time.Duration
	// MaxReconnectInterval caps the backoff after a lost connection.
	MaxReconnectInterval time.Duration
	// CommandQueue is the number of commands buffered between cycles.
	CommandQueue int
}

// MQTT publishes with QoS 0 and subscribes to the command topic on every
// connect. Connecting and reconnecting happen on paho's goroutines, so
// Publish never waits for the broker to come back.
type MQTT struct {
	client   mqtt.Client
	cfg      MQTTConfig
	commands chan Command
}

var _ Publisher = &MQTT{}

// NewMQTT starts connecting in the background and returns immediately.
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	if cfg.MaxReconnectInterval < cfg.ReconnectInterval {
		cfg.MaxReconnectInterval = cfg.ReconnectInterval
	}
	if cfg.CommandQueue <= 0 {
		cfg.CommandQueue = 16
	}

	m := &MQTT{
		cfg:      cfg,
		commands: make(chan Command, cfg.CommandQueue),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.ReconnectInterval).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval).
		SetConnectTimeout(5 * time.Second).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithField("broker", cfg.Broker).Warnf("mqtt connection lost: %v", err)
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			logrus.WithField("broker", cfg.Broker).Info("reconnecting to mqtt broker")
		})

	m.client = mqtt.NewClient(opts)
	logrus.WithFields(logrus.Fields{
		"broker":   cfg.Broker,
		"clientId": cfg.ClientID,
	}).Info("connecting to mqtt broker")
	// With connect retry enabled the token only completes once connected,
	// so it is not waited on here.
	m.client.Connect()

	return m
}

func (m *MQTT) onConnect(c mqtt.Client) {
	logrus.WithField("broker", m.cfg.Broker).Info("mqtt connected")
	if m.cfg.CommandTopic == "" {
		return
	}
	token := c.Subscribe(m.cfg.CommandTopic, 0, m.onMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			logrus.WithField("topic", m.cfg.CommandTopic).Errorf("failed to subscribe: %v", err)
			return
		}
		logrus.WithField("topic", m.cfg.CommandTopic).Info("subscribed to command topic")
	}()
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd := Command{
		Topic:      msg.Topic(),
		Payload:    string(msg.Payload()),
		ReceivedAt: time.Now(),
	}
	select {
	case m.commands <- cmd:
	default:
		logrus.WithField("topic", cmd.Topic).Warn("command queue full, dropping command")
	}
}

// Commands is drained by the control loop once per cycle.
func (m *MQTT) Commands() <-chan Command {
	return m.commands
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := m.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return pkgerrors.Wrapf(err, "failed to publish to %s", topic)
	}
	return nil
}

func (m *MQTT) Connected() bool {
	return m.client.IsConnectionOpen()
}

func (m *MQTT) Close() {
	logrus.Info("disconnecting from mqtt broker")
	m.client.Disconnect(250)
}
