// Package telemetry builds the payloads published for every cycle.
package telemetry

import (
	"encoding/json"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/ergosense/ergosense/pkg/indicator"
	"github.com/ergosense/ergosense/pkg/reading"
	"github.com/ergosense/ergosense/pkg/status"
)

// Wire names of the overall status.
const (
	StatusOK    = "OK"
	StatusWarn  = "MEDIO"
	StatusBad   = "PESSIMO"
	LightNone   = "nenhum"
	LightRed    = "vermelho"
	LightYellow = "amarelo"
	LightGreen  = "verde"
)

// Record is the fixed-shape telemetry payload.
type Record struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Light       int     `json:"light"`
	Posture     float64 `json:"posture"`
	Status      string  `json:"status"`
}

// Format builds the record for one cycle.
func Format(r reading.Reading, o status.Overall) Record {
	return Record{
		Temperature: round2(r.TemperatureC),
		Humidity:    round2(r.HumidityPct),
		Light:       r.LightPercentage(),
		Posture:     round2(r.DistanceCm),
		Status:      StatusName(o),
	}
}

// Marshal encodes the record as JSON.
func (rec Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to marshal telemetry record")
	}
	return b, nil
}

// StatusName is the external name of an overall status.
func StatusName(o status.Overall) string {
	switch o {
	case status.OverallBad:
		return StatusBad
	case status.OverallWarn:
		return StatusWarn
	default:
		return StatusOK
	}
}

// LightName is the external name of the active light for o.
func LightName(o status.Overall) string {
	return StateLightName(indicator.StateFor(o))
}

// StateLightName is the external name of the light that is on in s.
func StateLightName(s indicator.State) string {
	l, ok := s.Light()
	if !ok {
		return LightNone
	}
	switch l {
	case indicator.Red:
		return LightRed
	case indicator.Yellow:
		return LightYellow
	case indicator.Green:
		return LightGreen
	default:
		return LightNone
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
