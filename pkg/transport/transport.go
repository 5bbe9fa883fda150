// Package transport publishes telemetry to message brokers and collects the
// commands they deliver.
package transport

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
// The payload is dropped.
var ErrNotConnected = pkgerrors.New("not connected to broker")

// Publisher sends payloads to a broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Connected() bool
	Close()
}

// Command is an inbound message on the command topic.
type Command struct {
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Mirror publishes to Primary and copies the listed topics to Secondary.
// Only Primary decides the outcome of Publish and Connected; mirror
// failures are logged and never reach the caller.
type Mirror struct {
	Primary   Publisher
	Secondary Publisher
	topics    map[string]bool
}

var _ Publisher = &Mirror{}

// NewMirror copies only topics to secondary.
func NewMirror(primary, secondary Publisher, topics ...string) *Mirror {
	m := &Mirror{
		Primary:   primary,
		Secondary: secondary,
		topics:    make(map[string]bool, len(topics)),
	}
	for _, t := range topics {
		m.topics[t] = true
	}
	return m
}

func (m *Mirror) Publish(ctx context.Context, topic string, payload []byte) error {
	err := m.Primary.Publish(ctx, topic, payload)
	if m.topics[topic] {
		if merr := m.Secondary.Publish(ctx, topic, payload); merr != nil {
			logrus.WithField("topic", topic).Tracef("mirror publish failed: %v", merr)
		}
	}
	return err
}

func (m *Mirror) Connected() bool {
	return m.Primary.Connected()
}

func (m *Mirror) Close() {
	m.Primary.Close()
	m.Secondary.Close()
}
