package transport

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultKafkaWriteTimeout bounds one write, metadata lookup included.
	DefaultKafkaWriteTimeout = 2 * time.Second
	defaultKafkaQueue        = 32
)

// ErrMirrorBacklog is returned by Kafka.Publish when the writer has fallen
// behind and the message was dropped.
var ErrMirrorBacklog = pkgerrors.New("kafka mirror backlog full")

// Kafka mirrors published payloads into Kafka. MQTT topic names are mapped
// onto Kafka topic names by replacing '/' with '.', unless the prefix
// overrides the first segment.
//
// Publish only enqueues. A single goroutine writes, so a slow or silent
// broker costs the caller nothing.
type Kafka struct {
	w            *kafka.Writer
	key          []byte
	prefix       string
	writeTimeout time.Duration
	healthy      atomic.Bool

	queue  chan kafka.Message
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Publisher = &Kafka{}

// NewKafka returns a Kafka mirror writing to brokers. key is used as the
// message key so every sample of one desk lands on one partition.
func NewKafka(brokers []string, topicPrefix, key string) *Kafka {
	return newKafka(brokers, topicPrefix, key, DefaultKafkaWriteTimeout, defaultKafkaQueue)
}

func newKafka(brokers []string, topicPrefix, key string, writeTimeout time.Duration, queue int) *Kafka {
	ctx, cancel := context.WithCancel(context.Background())
	k := &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			MaxAttempts:            1,
			ReadTimeout:            writeTimeout,
			WriteTimeout:           writeTimeout,
			AllowAutoTopicCreation: true,
		},
		key:          []byte(key),
		prefix:       topicPrefix,
		writeTimeout: writeTimeout,
		queue:        make(chan kafka.Message, queue),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	k.healthy.Store(true)
	go k.run()

	logrus.WithField("brokers", brokers).Info("kafka mirror enabled")
	return k
}

// TopicFor maps an MQTT topic onto a Kafka topic name.
func (k *Kafka) TopicFor(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if k.prefix != "" && len(parts) > 0 {
		parts[0] = k.prefix
	}
	return strings.Join(parts, ".")
}

// Publish queues the payload and returns immediately. A full queue drops
// the message with ErrMirrorBacklog.
func (k *Kafka) Publish(_ context.Context, topic string, payload []byte) error {
	msg := kafka.Message{
		Topic: k.TopicFor(topic),
		Key:   k.key,
		Value: payload,
		Time:  time.Now(),
	}
	select {
	case k.queue <- msg:
		return nil
	default:
		return ErrMirrorBacklog
	}
}

func (k *Kafka) run() {
	defer close(k.done)
	for {
		select {
		case <-k.ctx.Done():
			return
		case msg := <-k.queue:
			k.write(msg)
		}
	}
}

func (k *Kafka) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(k.ctx, k.writeTimeout)
	defer cancel()

	if err := k.w.WriteMessages(ctx, msg); err != nil {
		if k.healthy.Swap(false) {
			logrus.WithField("topic", msg.Topic).Warnf("kafka mirror write failed: %v", err)
		}
		return
	}
	if !k.healthy.Swap(true) {
		logrus.Info("kafka mirror recovered")
	}
}

// Connected reports whether the last write succeeded.
func (k *Kafka) Connected() bool {
	return k.healthy.Load()
}

// Close aborts the write in flight and discards queued messages.
func (k *Kafka) Close() {
	k.cancel()
	<-k.done
	if err := k.w.Close(); err != nil {
		logrus.Errorf("failed to close kafka writer: %v", err)
	}
}
