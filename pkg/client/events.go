package client

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/events"
)

const eventsReconnectDelay = 2 * time.Second

// SubscribeEvents streams daemon events until ctx is done. A broken stream
// is reopened after a short delay. The returned channel is closed when ctx
// is done.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)
		for {
			err := c.streamEvents(ctx, out)
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Debug("event stream interrupted, reconnecting")

			t := time.NewTimer(eventsReconnectDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()

	return out
}

func (c *Client) streamEvents(ctx context.Context, out chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open event stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Errorf("got %d from event stream", resp.StatusCode)
	}

	return readEvents(ctx, resp.Body, out)
}

// readEvents parses a text/event-stream body. Only the event and data
// fields are used.
func readEvents(ctx context.Context, r io.Reader, out chan<- events.Event) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if name == "" && len(data) == 0 {
				continue
			}
			ev := events.Event{Name: name, Data: []byte(strings.Join(data, "\n"))}
			name, data = "", nil
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case strings.HasPrefix(line, ":"):
			// comment, used as heartbeat
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to read event stream")
	}
	return io.EOF
}
