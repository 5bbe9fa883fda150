package sensor

import (
	"context"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
)

type edgeStep struct {
	after time.Duration
	level gpio.Level
}

// fakePin replays scripted edges. Methods the ranger does not use panic
// through the nil embedded interface.
type fakePin struct {
	gpio.PinIO

	mu       sync.Mutex
	level    gpio.Level
	steps    []edgeStep
	timeouts []time.Duration
}

func (p *fakePin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	p.mu.Lock()
	p.timeouts = append(p.timeouts, timeout)
	if timeout < 0 {
		// A real pin would block forever here.
		p.mu.Unlock()
		return false
	}
	if len(p.steps) == 0 {
		p.mu.Unlock()
		time.Sleep(timeout)
		return false
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	p.mu.Unlock()

	time.Sleep(step.after)

	p.mu.Lock()
	p.level = step.level
	p.mu.Unlock()
	return true
}

func (p *fakePin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = l
	return nil
}

func TestUltrasonicRanger_Echo(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		steps   []edgeStep
		wantMin time.Duration
		wantMax time.Duration
		// wantWaits is the number of WaitForEdge calls, -1 for any.
		wantWaits int
	}{
		{
			name:      "echo pulse",
			timeout:   time.Second,
			steps:     []edgeStep{{after: time.Millisecond, level: gpio.High}, {after: 5 * time.Millisecond, level: gpio.Low}},
			wantMin:   4 * time.Millisecond,
			wantMax:   500 * time.Millisecond,
			wantWaits: 2,
		},
		{
			name:      "no echo",
			timeout:   20 * time.Millisecond,
			wantWaits: 1,
		},
		{
			name:    "late spurious edge",
			timeout: 20 * time.Millisecond,
			// The edge arrives after the deadline and leaves the line low.
			steps:     []edgeStep{{after: 30 * time.Millisecond, level: gpio.Low}},
			wantWaits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			echo := &fakePin{steps: tt.steps}
			u := &UltrasonicRanger{trig: &fakePin{}, echo: echo, timeout: tt.timeout}

			got, err := u.Echo(context.Background())
			if err != nil {
				t.Fatalf("Echo() error = %v", err)
			}
			if got < tt.wantMin || (tt.wantMax > 0 && got > tt.wantMax) || (tt.wantMax == 0 && got != 0) {
				t.Errorf("Echo() = %s, want between %s and %s", got, tt.wantMin, tt.wantMax)
			}

			echo.mu.Lock()
			defer echo.mu.Unlock()
			for _, d := range echo.timeouts {
				if d <= 0 {
					t.Errorf("WaitForEdge called with timeout %s", d)
				}
			}
			if tt.wantWaits >= 0 && len(echo.timeouts) != tt.wantWaits {
				t.Errorf("WaitForEdge called %d times, want %d", len(echo.timeouts), tt.wantWaits)
			}
		})
	}
}

func TestUltrasonicRanger_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := &UltrasonicRanger{trig: &fakePin{}, echo: &fakePin{}, timeout: time.Second}
	if _, err := u.Echo(ctx); err == nil {
		t.Errorf("Echo() error = nil with a canceled context")
	}
}
