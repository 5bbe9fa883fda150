// Package status classifies a normalized reading into per-dimension statuses
// and folds them into one overall status.
package status

import (
	"encoding/json"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Level is the status of a single dimension.
type Level int

const (
	OK Level = iota
	Warn
	Bad
	Error
)

func (l Level) String() string {
	switch l {
	case OK:
		return "OK"
	case Warn:
		return "WARN"
	case Bad:
		return "BAD"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Overall is the aggregate status of all dimensions.
type Overall int

const (
	OverallOK Overall = iota
	OverallWarn
	OverallBad
)

func (o Overall) String() string {
	switch o {
	case OverallOK:
		return "OK"
	case OverallWarn:
		return "WARN"
	case OverallBad:
		return "BAD"
	default:
		return fmt.Sprintf("Overall(%d)", int(o))
	}
}

func (o Overall) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Reason is the sub-category behind a dimension status, kept for
// observability. Aggregation only looks at the Level.
type Reason string

const (
	ReasonOK       Reason = "ok"
	ReasonApproach Reason = "approach"
	ReasonMedium   Reason = "medium"
	ReasonBad      Reason = "bad"
	ReasonCold     Reason = "cold"
	ReasonHot      Reason = "hot"
	ReasonError    Reason = "error"
)

// Dimension is the classification result of one monitored quantity.
type Dimension struct {
	Level  Level  `json:"level"`
	Reason Reason `json:"reason"`
}

// Dimensions groups the four per-cycle classifications.
type Dimensions struct {
	Posture     Dimension `json:"posture"`
	Light       Dimension `json:"light"`
	Temperature Dimension `json:"temperature"`
	Humidity    Dimension `json:"humidity"`
}

func (d Dimensions) all() [4]Dimension {
	return [4]Dimension{d.Posture, d.Light, d.Temperature, d.Humidity}
}

// ErrorPolicy decides how ERROR dimension statuses feed the aggregation.
type ErrorPolicy string

const (
	// ErrorIgnore does not consult ERROR statuses at all.
	ErrorIgnore ErrorPolicy = "ignore"
	// ErrorAsWarn treats any ERROR status as WARN.
	ErrorAsWarn ErrorPolicy = "warn"
	// ErrorAsBad treats any ERROR status as BAD.
	ErrorAsBad ErrorPolicy = "bad"
)

// ParseErrorPolicy validates a policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(s); p {
	case ErrorIgnore, ErrorAsWarn, ErrorAsBad:
		return p, nil
	default:
		return "", pkgerrors.Errorf("unknown error policy %q, must be one of ignore, warn, bad", s)
	}
}
