package indicator

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ Driver = &GPIODriver{}

// GPIOPins names the GPIO lines, as known to gpioreg (e.g. "GPIO17").
type GPIOPins struct {
	Red    string
	Yellow string
	Green  string
	Buzzer string
}

// GPIODriver drives the lights and the buzzer through periph.io.
type GPIODriver struct {
	lights    map[Light]gpio.PinIO
	buzzer    gpio.PinIO
	activeLow bool

	mu        sync.Mutex
	toneTimer *time.Timer
	// toneSeq identifies the current tone, so a stale timer cannot cut off
	// a newer one.
	toneSeq uint64
}

// NewGPIODriver initializes the host drivers and looks up every pin.
// activeLow inverts the light outputs, matching lights wired to the
// supply rail.
func NewGPIODriver(pins GPIOPins, activeLow bool) (*GPIODriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to initialize periph host drivers")
	}

	d := &GPIODriver{
		lights:    make(map[Light]gpio.PinIO),
		activeLow: activeLow,
	}
	for l, name := range map[Light]string{Red: pins.Red, Yellow: pins.Yellow, Green: pins.Green} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, pkgerrors.Errorf("no gpio pin found for %s light: %q", l, name)
		}
		d.lights[l] = p
	}

	d.buzzer = gpioreg.ByName(pins.Buzzer)
	if d.buzzer == nil {
		return nil, pkgerrors.Errorf("no gpio pin found for buzzer: %q", pins.Buzzer)
	}

	logrus.WithFields(logrus.Fields{
		"red":       pins.Red,
		"yellow":    pins.Yellow,
		"green":     pins.Green,
		"buzzer":    pins.Buzzer,
		"activeLow": activeLow,
	}).Info("gpio indicators ready")

	return d, nil
}

func (d *GPIODriver) SetLight(l Light, on bool) error {
	p, ok := d.lights[l]
	if !ok {
		return pkgerrors.Errorf("unknown light %d", l)
	}
	level := gpio.Level(on)
	if d.activeLow {
		level = !level
	}
	return p.Out(level)
}

// Tone starts a square wave on the buzzer and schedules its end. Pins
// without PWM support are driven high instead, which suits active buzzers.
func (d *GPIODriver) Tone(frequencyHz int, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.toneTimer != nil {
		d.toneTimer.Stop()
	}

	err := d.buzzer.PWM(gpio.DutyHalf, physic.Frequency(frequencyHz)*physic.Hertz)
	if err != nil {
		logrus.Tracef("buzzer PWM unavailable, falling back to level output: %v", err)
		if err := d.buzzer.Out(gpio.High); err != nil {
			return pkgerrors.Wrapf(err, "failed to drive buzzer")
		}
	}

	d.toneSeq++
	seq := d.toneSeq
	d.toneTimer = time.AfterFunc(dur, func() {
		if err := d.toneExpired(seq); err != nil {
			logrus.Errorf("failed to stop alarm tone: %v", err)
		}
	})
	return nil
}

// toneExpired silences the buzzer unless another tone started after seq.
func (d *GPIODriver) toneExpired(seq uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq != d.toneSeq {
		return nil
	}
	d.toneTimer = nil
	return d.buzzer.Out(gpio.Low)
}

func (d *GPIODriver) Silence() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.toneTimer != nil {
		d.toneTimer.Stop()
		d.toneTimer = nil
	}
	d.toneSeq++
	return d.buzzer.Out(gpio.Low)
}

func (d *GPIODriver) Close() error {
	err := d.Silence()
	for _, p := range d.lights {
		if herr := p.Halt(); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}
