package status

import (
	"math"
	"testing"

	"github.com/ergosense/ergosense/pkg/reading"
)

func TestPosture(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     Dimension
	}{
		{name: "close", distance: 0, want: Dimension{OK, ReasonOK}},
		{name: "boundary 100", distance: 100, want: Dimension{OK, ReasonOK}},
		{name: "just above 100", distance: 100.01, want: Dimension{Warn, ReasonApproach}},
		{name: "boundary 200", distance: 200, want: Dimension{Warn, ReasonApproach}},
		{name: "just above 200", distance: 200.5, want: Dimension{Bad, ReasonBad}},
		{name: "boundary 400", distance: 400, want: Dimension{Bad, ReasonBad}},
		{name: "just above 400", distance: 400.1, want: Dimension{Error, ReasonError}},
		{name: "echo timeout", distance: reading.DistanceOutOfRange, want: Dimension{Error, ReasonError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Posture(tt.distance); got != tt.want {
				t.Errorf("Posture(%v) = %v, want %v", tt.distance, got, tt.want)
			}
		})
	}
}

func TestLight(t *testing.T) {
	tests := []struct {
		pct  int
		want Level
	}{
		{100, OK},
		{70, OK},
		{69, Warn},
		{30, Warn},
		{29, Bad},
		{0, Bad},
	}
	for _, tt := range tests {
		if got := Light(tt.pct); got.Level != tt.want {
			t.Errorf("Light(%d) = %v, want %v", tt.pct, got.Level, tt.want)
		}
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		celsius float64
		want    Dimension
	}{
		{-5, Dimension{Bad, ReasonCold}},
		{18, Dimension{Bad, ReasonCold}},
		{18.1, Dimension{OK, ReasonOK}},
		{24, Dimension{OK, ReasonOK}},
		{24.1, Dimension{Bad, ReasonHot}},
		{100, Dimension{Bad, ReasonHot}},
		{100.5, Dimension{Error, ReasonError}},
	}
	for _, tt := range tests {
		if got := Temperature(tt.celsius); got != tt.want {
			t.Errorf("Temperature(%v) = %v, want %v", tt.celsius, got, tt.want)
		}
	}
}

func TestHumidity(t *testing.T) {
	tests := []struct {
		pct  float64
		want Level
	}{
		{0, Bad},
		{29.9, Bad},
		{30, Warn},
		{39.9, Warn},
		{40, OK},
		{50, OK},
		{60, OK},
		{60.1, Warn},
		{70, Warn},
		{70.1, Bad},
		{100, Bad},
	}
	for _, tt := range tests {
		if got := Humidity(tt.pct); got.Level != tt.want {
			t.Errorf("Humidity(%v) = %v, want %v", tt.pct, got.Level, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	ok := Dimension{OK, ReasonOK}
	tests := []struct {
		name   string
		dims   Dimensions
		policy ErrorPolicy
		want   Overall
	}{
		{
			name: "all ok",
			dims: Dimensions{ok, ok, ok, ok},
			want: OverallOK,
		},
		{
			name: "posture bad",
			dims: Dimensions{Posture: Dimension{Bad, ReasonBad}, Light: ok, Temperature: ok, Humidity: ok},
			want: OverallBad,
		},
		{
			name: "posture approach",
			dims: Dimensions{Posture: Dimension{Warn, ReasonApproach}, Light: ok, Temperature: ok, Humidity: ok},
			want: OverallWarn,
		},
		{
			name: "cold wins over medium light",
			dims: Dimensions{Posture: ok, Light: Dimension{Warn, ReasonMedium}, Temperature: Dimension{Bad, ReasonCold}, Humidity: ok},
			want: OverallBad,
		},
		{
			name: "humidity medium",
			dims: Dimensions{Posture: ok, Light: ok, Temperature: ok, Humidity: Dimension{Warn, ReasonMedium}},
			want: OverallWarn,
		},
		{
			name:   "posture error ignored",
			dims:   Dimensions{Posture: Dimension{Error, ReasonError}, Light: ok, Temperature: ok, Humidity: ok},
			policy: ErrorIgnore,
			want:   OverallOK,
		},
		{
			name:   "temperature error as warn",
			dims:   Dimensions{Posture: ok, Light: ok, Temperature: Dimension{Error, ReasonError}, Humidity: ok},
			policy: ErrorAsWarn,
			want:   OverallWarn,
		},
		{
			name:   "posture error as bad",
			dims:   Dimensions{Posture: Dimension{Error, ReasonError}, Light: ok, Temperature: ok, Humidity: ok},
			policy: ErrorAsBad,
			want:   OverallBad,
		},
		{
			name:   "error as warn does not mask bad",
			dims:   Dimensions{Posture: Dimension{Error, ReasonError}, Light: Dimension{Bad, ReasonBad}, Temperature: ok, Humidity: ok},
			policy: ErrorAsWarn,
			want:   OverallBad,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.dims, tt.policy); got != tt.want {
				t.Errorf("Aggregate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	r := reading.Raw{DistanceCm: 150, LightRaw: 1200, TemperatureC: 26, HumidityPct: 65}.Normalize()

	d1, o1 := Evaluate(r, ErrorIgnore)
	d2, o2 := Evaluate(r, ErrorIgnore)
	if d1 != d2 || o1 != o2 {
		t.Fatalf("Evaluate is not idempotent: (%v, %v) != (%v, %v)", d1, o1, d2, o2)
	}
	if o1 != OverallBad {
		t.Fatalf("expected BAD for hot room, got %v", o1)
	}
}

func TestEvaluateScenarios(t *testing.T) {
	// Everything comfortable.
	d, o := Evaluate(reading.Raw{DistanceCm: 50, LightRaw: 0, TemperatureC: 22, HumidityPct: 50}.Normalize(), ErrorIgnore)
	if o != OverallOK {
		t.Errorf("expected OK, got %v (%+v)", o, d)
	}

	// Too far away and dark: posture ERROR does nothing, light BAD decides.
	raw := reading.Raw{DistanceCm: 450, LightRaw: 4095, TemperatureC: 22, HumidityPct: 50}.Normalize()
	d, o = Evaluate(raw, ErrorIgnore)
	if d.Posture.Level != Error {
		t.Errorf("expected posture ERROR, got %v", d.Posture.Level)
	}
	if d.Light.Level != Bad {
		t.Errorf("expected light BAD for %d%%, got %v", raw.LightPercentage(), d.Light.Level)
	}
	if o != OverallBad {
		t.Errorf("expected BAD, got %v", o)
	}
}

func TestEvaluateAfterSensorFault(t *testing.T) {
	r := reading.Raw{DistanceCm: 50, LightRaw: 0, TemperatureC: math.NaN(), HumidityPct: 22}.Normalize()
	d, _ := Evaluate(r, ErrorIgnore)
	if d.Temperature.Level != OK {
		t.Errorf("temperature = %v, want OK", d.Temperature.Level)
	}
	if d.Humidity.Level != OK {
		t.Errorf("humidity = %v, want OK", d.Humidity.Level)
	}
}

func TestParseErrorPolicy(t *testing.T) {
	for _, s := range []string{"ignore", "warn", "bad"} {
		if _, err := ParseErrorPolicy(s); err != nil {
			t.Errorf("ParseErrorPolicy(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseErrorPolicy("loud"); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}
