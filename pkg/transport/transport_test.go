package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	connected bool
	err       error
	published []string
	closed    bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, topic)
	return nil
}

func (f *fakePublisher) Connected() bool { return f.connected }
func (f *fakePublisher) Close()          { f.closed = true }

func TestMirror(t *testing.T) {
	tests := []struct {
		name          string
		primary       *fakePublisher
		secondary     *fakePublisher
		topic         string
		wantErr       error
		wantConnected bool
		wantMirrored  bool
	}{
		{
			name:          "mirror failure is not reported",
			primary:       &fakePublisher{connected: true},
			secondary:     &fakePublisher{err: errors.New("i/o timeout")},
			topic:         "ergosense/dados",
			wantConnected: true,
		},
		{
			name:          "primary down while mirror is healthy",
			primary:       &fakePublisher{err: ErrNotConnected},
			secondary:     &fakePublisher{connected: true},
			topic:         "ergosense/dados",
			wantErr:       ErrNotConnected,
			wantConnected: false,
			wantMirrored:  true,
		},
		{
			name:          "unlisted topic is not mirrored",
			primary:       &fakePublisher{connected: true},
			secondary:     &fakePublisher{connected: true},
			topic:         "ergosense/led",
			wantConnected: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirror(tt.primary, tt.secondary, "ergosense/dados")

			err := m.Publish(context.Background(), tt.topic, []byte("{}"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			if got := m.Connected(); got != tt.wantConnected {
				t.Errorf("Connected() = %v, want %v", got, tt.wantConnected)
			}
			if got := len(tt.secondary.published) == 1; got != tt.wantMirrored {
				t.Errorf("mirrored = %v, want %v", got, tt.wantMirrored)
			}

			m.Close()
			if !tt.primary.closed || !tt.secondary.closed {
				t.Errorf("Close() did not reach both publishers")
			}
		})
	}
}

func TestKafkaTopicFor(t *testing.T) {
	tests := []struct {
		prefix string
		topic  string
		want   string
	}{
		{"", "ergosense/dados", "ergosense.dados"},
		{"", "/ergosense/led/", "ergosense.led"},
		{"desk42", "ergosense/dados", "desk42.dados"},
	}
	for _, tt := range tests {
		k := &Kafka{prefix: tt.prefix}
		if got := k.TopicFor(tt.topic); got != tt.want {
			t.Errorf("TopicFor(%q) with prefix %q = %q, want %q", tt.topic, tt.prefix, got, tt.want)
		}
	}
}

// silentBroker accepts connections and never answers.
func silentBroker(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return l.Addr().String()
}

func TestKafka_SilentBrokerDoesNotBlock(t *testing.T) {
	k := newKafka([]string{silentBroker(t)}, "", "desk", 200*time.Millisecond, 1)
	defer k.Close()

	start := time.Now()
	backlog := 0
	for i := 0; i < 5; i++ {
		err := k.Publish(context.Background(), "ergosense/dados", []byte("{}"))
		if errors.Is(err, ErrMirrorBacklog) {
			backlog++
		} else if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("5 publishes took %s against a silent broker", elapsed)
	}
	if backlog == 0 {
		t.Errorf("no message was dropped with a queue of 1")
	}
}
