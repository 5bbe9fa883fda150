package indicator

import (
	"context"
	"testing"
	"time"

	"github.com/ergosense/ergosense/pkg/status"
)

func TestStateFor(t *testing.T) {
	tests := []struct {
		overall status.Overall
		want    State
	}{
		{status.OverallOK, StateGreen},
		{status.OverallWarn, StateYellow},
		{status.OverallBad, StateRedAlarm},
	}
	for _, tt := range tests {
		if got := StateFor(tt.overall); got != tt.want {
			t.Errorf("StateFor(%v) = %v, want %v", tt.overall, got, tt.want)
		}
	}
}

func TestControllerExclusive(t *testing.T) {
	tests := []struct {
		overall   status.Overall
		wantLight Light
		wantAlarm bool
	}{
		{status.OverallOK, Green, false},
		{status.OverallWarn, Yellow, false},
		{status.OverallBad, Red, true},
	}

	// Run the sequence twice so every state is entered from every other one.
	drv := NewMemoryDriver()
	c := NewController(drv, DefaultTone, nil)
	for round := 0; round < 2; round++ {
		for _, tt := range tests {
			before := len(drv.Tones())
			c.Apply(context.Background(), tt.overall)

			on := drv.On()
			if len(on) != 1 || on[0] != tt.wantLight {
				t.Fatalf("round %d, %v: lights on = %v, want only %v", round, tt.overall, on, tt.wantLight)
			}
			played := len(drv.Tones()) > before
			if played != tt.wantAlarm {
				t.Fatalf("round %d, %v: alarm played = %t, want %t", round, tt.overall, played, tt.wantAlarm)
			}
			if !tt.wantAlarm && drv.Sounding() {
				t.Fatalf("round %d, %v: stale alarm still sounding", round, tt.overall)
			}
		}
	}
}

func TestControllerAlarmTone(t *testing.T) {
	drv := NewMemoryDriver()
	c := NewController(drv, Tone{}, nil)
	c.Apply(context.Background(), status.OverallBad)

	tones := drv.Tones()
	if len(tones) != 1 {
		t.Fatalf("expected one tone, got %d", len(tones))
	}
	if tones[0].FrequencyHz != 1000 || tones[0].Duration != 300*time.Millisecond {
		t.Errorf("unexpected tone %+v", tones[0])
	}
}

func TestControllerMuted(t *testing.T) {
	drv := NewMemoryDriver()
	c := NewController(drv, DefaultTone, func() bool { return true })
	if s := c.Apply(context.Background(), status.OverallBad); s != StateRedAlarm {
		t.Fatalf("Apply() = %v, want %v", s, StateRedAlarm)
	}
	if len(drv.Tones()) != 0 {
		t.Errorf("muted controller played a tone")
	}
	if on := drv.On(); len(on) != 1 || on[0] != Red {
		t.Errorf("lights on = %v, want red", on)
	}
}

func TestControllerOff(t *testing.T) {
	drv := NewMemoryDriver()
	c := NewController(drv, DefaultTone, nil)
	c.Apply(context.Background(), status.OverallBad)
	if err := c.Off(); err != nil {
		t.Fatalf("Off() returned error: %v", err)
	}
	if on := drv.On(); len(on) != 0 {
		t.Errorf("lights still on after Off(): %v", on)
	}
	if drv.Sounding() {
		t.Errorf("alarm still sounding after Off()")
	}
}
