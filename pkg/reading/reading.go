// Package reading holds the per-cycle sensor sample and the conversions that
// turn raw adapter output into values the classifiers can consume.
package reading

import (
	"math"
	"time"
)

const (
	// LightRawMax is the top of the 12-bit analog light range.
	LightRawMax = 4095

	// FallbackTemperatureC and FallbackHumidityPct replace a faulty
	// temperature/humidity pair.
	FallbackTemperatureC = 23.0
	FallbackHumidityPct  = 50.0

	// DistanceOutOfRange is reported when no echo came back in time.
	DistanceOutOfRange = 1000.0

	// speed of sound in cm/µs
	soundSpeedCmPerMicro = 0.034
)

// Raw is a sample exactly as an adapter produced it. Temperature and
// humidity may be NaN when the sensor failed.
type Raw struct {
	DistanceCm   float64
	LightRaw     int
	TemperatureC float64
	HumidityPct  float64
}

// Reading is a normalized sample. It never contains NaN.
type Reading struct {
	DistanceCm   float64 `json:"distanceCm"`
	LightRaw     int     `json:"lightRaw"`
	TemperatureC float64 `json:"temperatureC"`
	HumidityPct  float64 `json:"humidityPct"`
	// Fallback is true when temperature and humidity were substituted.
	Fallback bool `json:"fallback,omitempty"`
}

// Normalize applies the sensor-fault fallback and clamps the light value.
// If either temperature or humidity is NaN, both are replaced together.
func (r Raw) Normalize() Reading {
	out := Reading{
		DistanceCm:   r.DistanceCm,
		LightRaw:     clampLight(r.LightRaw),
		TemperatureC: r.TemperatureC,
		HumidityPct:  r.HumidityPct,
	}
	if math.IsNaN(r.TemperatureC) || math.IsNaN(r.HumidityPct) {
		out.TemperatureC = FallbackTemperatureC
		out.HumidityPct = FallbackHumidityPct
		out.Fallback = true
	}
	if math.IsNaN(out.DistanceCm) || math.IsInf(out.DistanceCm, 0) || out.DistanceCm < 0 {
		out.DistanceCm = DistanceOutOfRange
	}
	return out
}

// LightPercentage maps the raw light value onto 0..100, inverted:
// raw 0 is 100% and raw 4095 is 0%.
func (r Reading) LightPercentage() int {
	return LightPercentage(r.LightRaw)
}

// LightPercentage is the standalone form of Reading.LightPercentage.
func LightPercentage(raw int) int {
	raw = clampLight(raw)
	return 100 - int(math.Round(float64(raw)/LightRawMax*100))
}

// DistanceFromEcho converts an ultrasonic round-trip time into centimetres.
// A zero or negative duration means the echo timed out.
func DistanceFromEcho(echo time.Duration) float64 {
	if echo <= 0 {
		return DistanceOutOfRange
	}
	micros := float64(echo) / float64(time.Microsecond)
	return micros * soundSpeedCmPerMicro / 2
}

func clampLight(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > LightRawMax {
		return LightRawMax
	}
	return raw
}
