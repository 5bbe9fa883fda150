package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// continuousCycleWindow is how far back checkMissedCycles looks, in cycles.
	continuousCycleWindow = 30
	cycleRecordCount      = 120
)

var loopRecorder = NewTimeSeriesRecorder(cycleRecordCount, 2*time.Second)

// TimeSeriesRecorder records the start times of the last N cycles.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	Records        []time.Time
	interval       time.Duration
	mu             *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder expecting one
// record every interval.
func NewTimeSeriesRecorder(maxRecordCount int, interval time.Duration) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		Records:        make([]time.Time, 0),
		interval:       interval,
		mu:             &sync.Mutex{},
	}
}

// Interval is the expected time between two records.
func (r *TimeSeriesRecorder) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// SetInterval follows config reloads.
func (r *TimeSeriesRecorder) SetInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = d
}

// AddRecordNow adds a new record with the current time.
func (r *TimeSeriesRecorder) AddRecordNow() {
	r.AddRecord(time.Now())
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	t = t.Round(0)

	if len(r.Records) >= r.MaxRecordCount {
		r.Records = r.Records[1:]
	}
	r.Records = append(r.Records, t)
}

// GetRecords returns a copy of the records.
func (r *TimeSeriesRecorder) GetRecords() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Time(nil), r.Records...)
}

// GetRecordsString returns the records in RFC 3339 format.
func (r *TimeSeriesRecorder) GetRecordsString() []string {
	return formatTimes(r.GetRecords())
}

// GetRecordsIn returns the number of continuous records in the last duration.
func (r *TimeSeriesRecorder) GetRecordsIn(last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The last record must be within one interval.
	if len(r.Records) > 0 && time.Since(r.Records[len(r.Records)-1]) >= r.interval+time.Second {
		return 0
	}

	// Continuous records are at most interval+1s apart.
	count := 0
	for i := len(r.Records) - 1; i >= 0; i-- {
		record := r.Records[i]
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.Records) {
			theRecordAfter = r.Records[i+1]
		}

		if theRecordAfter.Sub(record) >= r.interval+time.Second {
			break
		}
		count++
	}

	return count
}

// GetLastRecords returns the records within the last duration, newest first.
func (r *TimeSeriesRecorder) GetLastRecords(last time.Duration) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Records) == 0 {
		return nil
	}

	var records []time.Time
	for i := len(r.Records) - 1; i >= 0; i-- {
		record := r.Records[i]
		if time.Since(record) > last {
			break
		}
		records = append(records, record)
	}

	return records
}

// GetLastRecord returns the last record.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Records) == 0 {
		return time.Time{}
	}

	return r.Records[len(r.Records)-1]
}

func formatTimes(times []time.Time) []string {
	timesString := make([]string, 0, len(times))
	for _, t := range times {
		timesString = append(timesString, t.Format(time.RFC3339))
	}
	return timesString
}

func formatRelativeTimes(times []time.Time) []string {
	var timesString []string
	for _, t := range times {
		timesString = append(timesString, time.Since(t).String())
	}
	return timesString
}

// continuousWindow adds a second on top of the nominal window to be sure.
func continuousWindow(interval time.Duration) time.Duration {
	return continuousCycleWindow*interval + time.Second
}

// checkMissedCycles reports whether the loop fell behind its cadence, e.g.
// because a sensor read hung until its timeout.
func checkMissedCycles() bool {
	interval := loopRecorder.Interval()
	window := continuousWindow(interval)
	count := loopRecorder.GetRecordsIn(window)
	expected := int(window / interval)
	minCount := expected - 1
	if len(loopRecorder.GetRecords()) < expected {
		// Not enough history yet.
		return false
	}

	if count < minCount {
		logrus.WithFields(logrus.Fields{
			"cycleCount":         count,
			"expectedCycleCount": expected,
			"minCycleCount":      minCount,
			"recentRecords":      formatRelativeTimes(loopRecorder.GetLastRecords(window)),
		}).Infof("Possibly missed cycles")
		return true
	}
	return false
}

// runLoop runs cycles until ctx is done, waiting the configured interval
// between the end of one cycle and the start of the next.
func runLoop(ctx context.Context, r *Runner) {
	for {
		interval := r.conf.Interval()
		loopRecorder.SetInterval(interval)

		checkMissedCycles()
		loopRecorder.AddRecordNow()
		// Errors are logged by the runner.
		_, _ = r.RunCycle(ctx)

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
