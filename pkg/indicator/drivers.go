package indicator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	_ Driver = &LogDriver{}
	_ Driver = &MemoryDriver{}
)

// LogDriver only logs what would be written. It is used on hosts without
// GPIO lines.
type LogDriver struct {
	mu     sync.Mutex
	lights map[Light]bool
}

func NewLogDriver() *LogDriver {
	return &LogDriver{lights: make(map[Light]bool)}
}

func (d *LogDriver) SetLight(l Light, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lights[l] != on {
		logrus.WithFields(logrus.Fields{
			"light": l.String(),
			"on":    on,
		}).Debug("light changed")
	}
	d.lights[l] = on
	return nil
}

func (d *LogDriver) Tone(frequencyHz int, dur time.Duration) error {
	logrus.WithFields(logrus.Fields{
		"frequencyHz": frequencyHz,
		"duration":    dur.String(),
	}).Info("alarm")
	return nil
}

func (d *LogDriver) Silence() error { return nil }

func (d *LogDriver) Close() error { return nil }

// MemoryDriver records the outputs it was asked to write.
type MemoryDriver struct {
	mu     sync.Mutex
	lights map[Light]bool
	tones  []Tone
	toneOn bool
	writes int
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{lights: make(map[Light]bool)}
}

func (d *MemoryDriver) SetLight(l Light, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lights[l] = on
	d.writes++
	return nil
}

func (d *MemoryDriver) Tone(frequencyHz int, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tones = append(d.tones, Tone{FrequencyHz: frequencyHz, Duration: dur})
	d.toneOn = true
	return nil
}

func (d *MemoryDriver) Silence() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toneOn = false
	return nil
}

func (d *MemoryDriver) Close() error { return nil }

// On returns the lights that are currently on.
func (d *MemoryDriver) On() []Light {
	d.mu.Lock()
	defer d.mu.Unlock()

	var on []Light
	for _, l := range []Light{Red, Yellow, Green} {
		if d.lights[l] {
			on = append(on, l)
		}
	}
	return on
}

// Tones returns every tone played so far.
func (d *MemoryDriver) Tones() []Tone {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Tone(nil), d.tones...)
}

// Sounding reports whether a tone was started and not silenced since.
func (d *MemoryDriver) Sounding() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.toneOn
}
