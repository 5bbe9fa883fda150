package display

import (
	"testing"
	"time"

	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/status"
)

func TestRender(t *testing.T) {
	r := reading.Raw{DistanceCm: 57.9, LightRaw: 4095, TemperatureC: 22, HumidityPct: 50}.Normalize()

	tests := []struct {
		name    string
		overall status.Overall
		elapsed time.Duration
		want    Lines
	}{
		{"ok at start", status.OverallOK, 0, Lines{"TUDO OK 0m", "P:57cm L:0%"}},
		{"ok after a while", status.OverallOK, 12*time.Minute + 59*time.Second, Lines{"TUDO OK 12m", "P:57cm L:0%"}},
		{"warn", status.OverallWarn, time.Hour, Lines{"ATENCAO!", "P:57cm L:0%"}},
		{"bad", status.OverallBad, time.Hour, Lines{"ALERTA!", "P:57cm L:0%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.overall, tt.elapsed, r); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClip(t *testing.T) {
	l := Lines{"TUDO OK 123456789m", "P:1000cm L:100%"}.Clip(16)
	if l[0] != "TUDO OK 12345678" {
		t.Errorf("line 1 = %q", l[0])
	}
	if l[1] != "P:1000cm L:100%" {
		t.Errorf("line 2 = %q", l[1])
	}
}

func TestScreenKeepsLast(t *testing.T) {
	s := NewScreen(0)
	if err := s.Show(Splash); err != nil {
		t.Fatalf("Show() returned error: %v", err)
	}
	if s.Last() != Splash {
		t.Errorf("Last() = %q, want %q", s.Last(), Splash)
	}
}
