package status

import "github.com/ergosense/ergosense/pkg/reading"

// Aggregate folds the per-dimension statuses into one overall status.
// BAD wins over WARN, WARN wins over OK. ERROR statuses are mapped
// according to policy; with ErrorIgnore they never change the result.
func Aggregate(d Dimensions, policy ErrorPolicy) Overall {
	var anyBad, anyWarn bool
	for _, dim := range d.all() {
		switch dim.Level {
		case Bad:
			anyBad = true
		case Warn:
			anyWarn = true
		case Error:
			switch policy {
			case ErrorAsBad:
				anyBad = true
			case ErrorAsWarn:
				anyWarn = true
			}
		}
	}

	switch {
	case anyBad:
		return OverallBad
	case anyWarn:
		return OverallWarn
	default:
		return OverallOK
	}
}

// Evaluate classifies and aggregates in one step.
func Evaluate(r reading.Reading, policy ErrorPolicy) (Dimensions, Overall) {
	d := Classify(r)
	return d, Aggregate(d, policy)
}
