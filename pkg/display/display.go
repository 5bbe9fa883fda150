// Package display renders the two-line status summary shown on the desk
// screen.
package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/status"
)

// DefaultWidth matches a 16x2 character LCD.
const DefaultWidth = 16

// Splash is shown while the daemon starts.
var Splash = Lines{"ErgoSense", "Inicializando..."}

// Lines is the two-line summary.
type Lines [2]string

// Render builds the summary for one cycle. elapsed is the time since the
// work session started.
func Render(o status.Overall, elapsed time.Duration, r reading.Reading) Lines {
	var first string
	switch o {
	case status.OverallBad:
		first = "ALERTA!"
	case status.OverallWarn:
		first = "ATENCAO!"
	default:
		first = fmt.Sprintf("TUDO OK %dm", int(elapsed/time.Minute))
	}
	second := fmt.Sprintf("P:%dcm L:%d%%", int(r.DistanceCm), r.LightPercentage())
	return Lines{first, second}
}

// Clip cuts every line to width characters. A non-positive width leaves the
// lines untouched.
func (l Lines) Clip(width int) Lines {
	if width <= 0 {
		return l
	}
	for i, s := range l {
		if r := []rune(s); len(r) > width {
			l[i] = string(r[:width])
		}
	}
	return l
}

// Display shows a summary.
type Display interface {
	Show(l Lines) error
}

// Screen keeps the last summary in memory and logs changes. It stands in
// for the physical LCD.
type Screen struct {
	width int

	mu   sync.RWMutex
	last Lines
}

func NewScreen(width int) *Screen {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Screen{width: width}
}

func (s *Screen) Show(l Lines) error {
	l = l.Clip(s.width)

	s.mu.Lock()
	changed := s.last != l
	s.last = l
	s.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{
		"line1": l[0],
		"line2": l[1],
	})
	if changed {
		entry.Debug("display updated")
	} else {
		entry.Trace("display unchanged")
	}
	return nil
}

// Last returns the summary currently on screen.
func (s *Screen) Last() Lines {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
