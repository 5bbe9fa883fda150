package daemon

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/config"
	"github.com/ergosense/ergosense/pkg/display"
	"github.com/ergosense/ergosense/pkg/events"
	"github.com/ergosense/ergosense/pkg/indicator"
	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/sensor"
	"github.com/ergosense/ergosense/pkg/status"
	"github.com/ergosense/ergosense/pkg/telemetry"
	"github.com/ergosense/ergosense/pkg/transport"
)

// Snapshot is the outcome of the last completed cycle.
type Snapshot struct {
	Seq             uint64             `json:"seq"`
	Time            time.Time          `json:"time"`
	Reading         reading.Reading    `json:"reading"`
	LightPercentage int                `json:"lightPercentage"`
	Dimensions      status.Dimensions  `json:"dimensions"`
	Overall         status.Overall     `json:"overall"`
	ErrorPolicy     status.ErrorPolicy `json:"errorPolicy"`
	Light           string             `json:"light"`
	Alarm           bool               `json:"alarm"`
	Display         display.Lines      `json:"display"`
	Record          telemetry.Record   `json:"record"`
	Session         WorkSession        `json:"session"`
	Connected       bool               `json:"connected"`
	Published       bool               `json:"published"`
	Dropped         uint64             `json:"dropped"`
	LastError       string             `json:"lastError,omitempty"`
}

// Runner executes control cycles. Cycles never overlap: a cycle forced
// through the API waits for the periodic one to finish.
type Runner struct {
	conf      config.Config
	sensor    sensor.Adapter
	indicator *indicator.Controller
	display   display.Display
	publisher transport.Publisher
	commands  <-chan transport.Command
	hub       *events.EventHub
	metrics   *Metrics
	session   WorkSession
	now       func() time.Time

	cycleLock sync.Mutex

	mu        sync.RWMutex
	seq       uint64
	dropped   uint64
	last      *Snapshot
	lastError string
}

// RunnerOptions carries the collaborators of a Runner. Publisher,
// Commands, Hub and Metrics are optional.
type RunnerOptions struct {
	Config    config.Config
	Sensor    sensor.Adapter
	Indicator *indicator.Controller
	Display   display.Display
	Publisher transport.Publisher
	Commands  <-chan transport.Command
	Hub       *events.EventHub
	Metrics   *Metrics
	Now       func() time.Time
}

func NewRunner(opts RunnerOptions) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		conf:      opts.Config,
		sensor:    opts.Sensor,
		indicator: opts.Indicator,
		display:   opts.Display,
		publisher: opts.Publisher,
		commands:  opts.Commands,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		session:   NewWorkSession(now()),
		now:       now,
	}
}

func (r *Runner) Session() WorkSession {
	return r.session
}

// Last returns the snapshot of the last completed cycle, or nil before the
// first one completes.
func (r *Runner) Last() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == nil {
		return nil
	}
	s := *r.last
	s.LastError = r.lastError
	return &s
}

// RunCycle runs one full cycle: message-queue service, sense, classify,
// aggregate, actuate, render and publish. A sensor failure skips the rest of
// the cycle and leaves the outputs as last asserted.
func (r *Runner) RunCycle(ctx context.Context) (*Snapshot, error) {
	r.cycleLock.Lock()
	defer r.cycleLock.Unlock()

	start := r.now()

	r.serviceCommands()

	raw, err := r.sensor.Read(ctx)
	if err != nil {
		r.metrics.CycleFailed()
		r.mu.Lock()
		r.lastError = err.Error()
		r.mu.Unlock()
		logrus.Errorf("failed to read sensors, skipping cycle: %v", err)
		return nil, pkgerrors.Wrapf(err, "cycle skipped")
	}

	rd := raw.Normalize()
	if rd.Fallback {
		logrus.WithFields(logrus.Fields{
			"temperatureC": raw.TemperatureC,
			"humidityPct":  raw.HumidityPct,
		}).Warnf("invalid temperature/humidity reading, using %.1f°C/%.1f%%", reading.FallbackTemperatureC, reading.FallbackHumidityPct)
	}

	policy := r.conf.ErrorPolicy()
	dims, overall := status.Evaluate(rd, policy)

	state := r.indicator.Apply(ctx, overall)

	lines := display.Render(overall, r.session.Elapsed(start), rd).Clip(r.conf.DisplayWidth())
	if err := r.display.Show(lines); err != nil {
		logrus.Errorf("failed to update display: %v", err)
	}

	rec := telemetry.Format(rd, overall)
	published := r.publish(ctx, rec, overall)

	snap := &Snapshot{
		Time:            start.Round(0),
		Reading:         rd,
		LightPercentage: rd.LightPercentage(),
		Dimensions:      dims,
		Overall:         overall,
		ErrorPolicy:     policy,
		Light:           telemetry.StateLightName(state),
		Alarm:           state.Alarm(),
		Display:         lines,
		Record:          rec,
		Session:         r.session,
		Published:       published,
	}
	if r.publisher != nil {
		snap.Connected = r.publisher.Connected()
	}

	r.mu.Lock()
	r.seq++
	snap.Seq = r.seq
	snap.Dropped = r.dropped
	prev := r.last
	r.last = snap
	r.lastError = ""
	r.mu.Unlock()

	duration := r.now().Sub(start)
	r.metrics.CycleCompleted(snap, duration)
	r.metrics.SetConnected(snap.Connected)

	printStatus(snap)

	if prev != nil && prev.Overall != snap.Overall {
		logrus.WithFields(logrus.Fields{
			"from": prev.Overall,
			"to":   snap.Overall,
		}).Info("overall status changed")
		r.hub.Publish(events.StatusChanged, events.StatusChangedEvent{
			From: telemetry.StatusName(prev.Overall),
			To:   telemetry.StatusName(snap.Overall),
			Ts:   start.Unix(),
		})
	}

	payload, _ := rec.Marshal()
	r.hub.Publish(events.CycleCompleted, events.CycleCompletedEvent{
		Seq:        snap.Seq,
		Overall:    telemetry.StatusName(overall),
		Light:      snap.Light,
		Record:     payload,
		Published:  published,
		Fallback:   rd.Fallback,
		DurationMs: duration.Milliseconds(),
		Ts:         start.Unix(),
	})

	return snap, nil
}

// serviceCommands drains the inbound command queue without blocking.
// Commands are only logged.
func (r *Runner) serviceCommands() {
	if r.commands == nil {
		return
	}
	for {
		select {
		case cmd, ok := <-r.commands:
			if !ok {
				r.commands = nil
				return
			}
			logrus.WithFields(logrus.Fields{
				"topic":   cmd.Topic,
				"payload": cmd.Payload,
			}).Info("command received")
			r.metrics.CommandServiced()
			r.hub.Publish(events.CommandReceived, events.CommandReceivedEvent{
				Topic:   cmd.Topic,
				Payload: cmd.Payload,
				Ts:      cmd.ReceivedAt.Unix(),
			})
		default:
			return
		}
	}
}

// publish sends the record and the LED name. Nothing is buffered while the
// transport is down.
func (r *Runner) publish(ctx context.Context, rec telemetry.Record, overall status.Overall) bool {
	if r.publisher == nil {
		return false
	}

	payload, err := rec.Marshal()
	if err != nil {
		logrus.Errorf("failed to marshal telemetry: %v", err)
		return false
	}

	ok := true
	for _, msg := range []struct {
		topic   string
		payload []byte
	}{
		{r.conf.DataTopic(), payload},
		{r.conf.LEDTopic(), []byte(telemetry.LightName(overall))},
	} {
		err := r.publisher.Publish(ctx, msg.topic, msg.payload)
		if err == nil {
			continue
		}
		ok = false
		if errors.Is(err, transport.ErrNotConnected) {
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
			r.metrics.TelemetryDropped()
			logrus.WithField("topic", msg.topic).Debug("not connected, telemetry dropped")
			continue
		}
		r.metrics.PublishFailed()
		logrus.WithField("topic", msg.topic).Warnf("failed to publish telemetry: %v", err)
	}
	return ok
}

var (
	lastPrintTime   time.Time
	lastPrintStatus cycleStatus
	printStatusLock sync.Mutex
)

type cycleStatus struct {
	overall    status.Overall
	dimensions status.Dimensions
	light      string
	connected  bool
	fallback   bool
}

// printStatus logs the cycle outcome at debug level when it changes and at
// trace level otherwise.
func printStatus(s *Snapshot) {
	printStatusLock.Lock()
	defer printStatusLock.Unlock()

	currentStatus := cycleStatus{
		overall:    s.Overall,
		dimensions: s.Dimensions,
		light:      s.Light,
		connected:  s.Connected,
		fallback:   s.Reading.Fallback,
	}

	fields := logrus.Fields{
		"overall":      s.Overall,
		"posture":      s.Dimensions.Posture.Reason,
		"light":        s.Dimensions.Light.Reason,
		"temperature":  s.Dimensions.Temperature.Reason,
		"humidity":     s.Dimensions.Humidity.Reason,
		"distanceCm":   s.Reading.DistanceCm,
		"lightPercent": s.LightPercentage,
		"temperatureC": s.Reading.TemperatureC,
		"humidityPct":  s.Reading.HumidityPct,
		"led":          s.Light,
		"connected":    s.Connected,
	}

	defer func() { lastPrintTime = time.Now() }()

	// Skip printing if the last print was recent and everything is the same.
	if time.Since(lastPrintTime) < loopRecorder.Interval()+time.Second && reflect.DeepEqual(lastPrintStatus, currentStatus) {
		logrus.WithFields(fields).Trace("cycle status")
		return
	}

	logrus.WithFields(fields).Debug("cycle status")

	lastPrintStatus = currentStatus
}
