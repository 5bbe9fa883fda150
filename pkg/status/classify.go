package status

import "github.com/ergosense/ergosense/pkg/reading"

// Classify evaluates all four dimensions of r.
func Classify(r reading.Reading) Dimensions {
	return Dimensions{
		Posture:     Posture(r.DistanceCm),
		Light:       Light(r.LightPercentage()),
		Temperature: Temperature(r.TemperatureC),
		Humidity:    Humidity(r.HumidityPct),
	}
}

// Posture classifies the distance between the user and the screen.
func Posture(distanceCm float64) Dimension {
	switch {
	case distanceCm <= 100:
		return Dimension{OK, ReasonOK}
	case distanceCm <= 200:
		return Dimension{Warn, ReasonApproach}
	case distanceCm <= 400:
		return Dimension{Bad, ReasonBad}
	default:
		return Dimension{Error, ReasonError}
	}
}

// Light classifies the ambient light percentage. It has no ERROR band.
func Light(percentage int) Dimension {
	switch {
	case percentage >= 70:
		return Dimension{OK, ReasonOK}
	case percentage >= 30:
		return Dimension{Warn, ReasonMedium}
	default:
		return Dimension{Bad, ReasonBad}
	}
}

// Temperature classifies the room temperature. Cold and hot are both BAD.
func Temperature(celsius float64) Dimension {
	switch {
	case celsius <= 18:
		return Dimension{Bad, ReasonCold}
	case celsius <= 24:
		return Dimension{OK, ReasonOK}
	case celsius <= 100:
		return Dimension{Bad, ReasonHot}
	default:
		return Dimension{Error, ReasonError}
	}
}

// Humidity classifies relative humidity. The bands cover every value, so
// ERROR is never returned.
func Humidity(pct float64) Dimension {
	switch {
	case pct >= 40 && pct <= 60:
		return Dimension{OK, ReasonOK}
	case (pct >= 30 && pct < 40) || (pct > 60 && pct <= 70):
		return Dimension{Warn, ReasonMedium}
	default:
		return Dimension{Bad, ReasonBad}
	}
}
