package daemon

import (
	"sync"
	"time"
)

// TimeSeriesRecorder records the last N sampler tick times. Gaps in the
// series show ticks that were missed, usually because the machine slept.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	// Interval is the expected time between two records.
	Interval time.Duration
	Records  []time.Time
	mu       *sync.Mutex
}

func NewTimeSeriesRecorder(maxRecordCount int, interval time.Duration) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		Interval:       interval,
		Records:        make([]time.Time, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecordNow adds a new record with the current time.
func (r *TimeSeriesRecorder) AddRecordNow() {
	r.AddRecord(time.Now())
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading, so time.Since stays honest across a
	// system sleep.
	t = t.Round(0)

	if len(r.Records) >= r.MaxRecordCount {
		r.Records = r.Records[1:]
	}
	r.Records = append(r.Records, t)
}

// SetInterval changes the expected interval, e.g. after a config reload.
func (r *TimeSeriesRecorder) SetInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Interval = d
}

// GetRecordsIn returns the number of continuous records in the last duration.
func (r *TimeSeriesRecorder) GetRecordsIn(last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap := r.Interval + time.Second

	// The last record must be recent.
	if len(r.Records) > 0 && time.Since(r.Records[len(r.Records)-1]) >= gap {
		return 0
	}

	// Walk back from the end while adjacent records are less than one
	// interval (plus a second of slack) apart.
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

		if theRecordAfter.Sub(record) >= gap {
			break
		}
		count++
	}

	return count
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

// Len returns the number of records.
func (r *TimeSeriesRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Records)
}
