// Package indicator maps the overall status onto the three desk lights and the
// alarm buzzer.
package indicator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/status"
)

// Light identifies one of the indicator lights.
type Light int

const (
	Red Light = iota
	Yellow
	Green
)

// Lights lists every light in switch-off order.
var Lights = []Light{Red, Green, Yellow}

func (l Light) String() string {
	switch l {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	default:
		return "unknown"
	}
}

// State is the output state the indicators are driven into.
type State int

const (
	// StateNone means no light is active. Only seen before the first cycle.
	StateNone State = iota
	StateRedAlarm
	StateYellow
	StateGreen
)

func (s State) String() string {
	switch s {
	case StateRedAlarm:
		return "RED_ALARM"
	case StateYellow:
		return "YELLOW"
	case StateGreen:
		return "GREEN"
	default:
		return "NONE"
	}
}

// Light returns the light that is on in state s.
func (s State) Light() (Light, bool) {
	switch s {
	case StateRedAlarm:
		return Red, true
	case StateYellow:
		return Yellow, true
	case StateGreen:
		return Green, true
	default:
		return 0, false
	}
}

// Alarm reports whether the buzzer sounds in state s.
func (s State) Alarm() bool {
	return s == StateRedAlarm
}

// StateFor is the indicator policy: BAD raises the red alarm, WARN lights
// yellow, OK lights green.
func StateFor(o status.Overall) State {
	switch o {
	case status.OverallBad:
		return StateRedAlarm
	case status.OverallWarn:
		return StateYellow
	default:
		return StateGreen
	}
}

// Driver writes indicator outputs to hardware. Implementations must not
// block on Tone; the tone stops by itself after the given duration.
type Driver interface {
	SetLight(l Light, on bool) error
	Tone(frequencyHz int, d time.Duration) error
	Silence() error
	Close() error
}

// Tone describes the alarm sound.
type Tone struct {
	FrequencyHz int
	Duration    time.Duration
}

// DefaultTone is 1000 Hz for 300 ms.
var DefaultTone = Tone{FrequencyHz: 1000, Duration: 300 * time.Millisecond}

// Controller re-asserts the indicator outputs every cycle. It keeps no state
// between calls other than the tone settings.
type Controller struct {
	driver Driver
	tone   Tone
	muted  func() bool
}

// NewController returns a Controller. muted may be nil.
func NewController(driver Driver, tone Tone, muted func() bool) *Controller {
	if tone.FrequencyHz <= 0 || tone.Duration <= 0 {
		tone = DefaultTone
	}
	if muted == nil {
		muted = func() bool { return false }
	}
	return &Controller{driver: driver, tone: tone, muted: muted}
}

// Apply switches every output off, then turns on the outputs for o.
// Errors are logged and the remaining outputs are still written, so a
// dropped write is simply corrected on the next cycle.
func (c *Controller) Apply(_ context.Context, o status.Overall) State {
	for _, l := range Lights {
		if err := c.driver.SetLight(l, false); err != nil {
			logrus.WithField("light", l).Errorf("failed to switch light off: %v", err)
		}
	}
	if err := c.driver.Silence(); err != nil {
		logrus.Errorf("failed to silence alarm: %v", err)
	}

	s := StateFor(o)
	if l, ok := s.Light(); ok {
		if err := c.driver.SetLight(l, true); err != nil {
			logrus.WithField("light", l).Errorf("failed to switch light on: %v", err)
		}
	}
	if s.Alarm() && !c.muted() {
		if err := c.driver.Tone(c.tone.FrequencyHz, c.tone.Duration); err != nil {
			logrus.Errorf("failed to sound alarm: %v", err)
		}
	}

	return s
}

// Off switches everything off. Used at startup and shutdown.
func (c *Controller) Off() error {
	var firstErr error
	for _, l := range Lights {
		if err := c.driver.SetLight(l, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.driver.Silence(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
