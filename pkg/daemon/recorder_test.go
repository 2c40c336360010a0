package daemon

import (
	"sync"
	"testing"
	"time"
)

func TestTimeSeriesRecorder_GetRecordsIn(t *testing.T) {
	type fields struct {
		MaxRecordCount int
		Records        []time.Time
	}
	type args struct {
		last time.Duration
	}
	tests := []struct {
		name   string
		fields fields
		args   args
		want   int
	}{
		{
			name: "test noncontinuous records",
			fields: fields{
				MaxRecordCount: 10,
				Records: []time.Time{
					time.Now().Add(-time.Second * 31).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 10).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 40,
			},
			want: 2,
		},
		{
			name: "test continuous records",
			fields: fields{
				MaxRecordCount: 10,
				Records: []time.Time{
					time.Now().Add(-time.Second * 70).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 60).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 40).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 30).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 10).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 50,
			},
			want: 4,
		},
		{
			name: "test stale last record",
			fields: fields{
				MaxRecordCount: 10,
				Records: []time.Time{
					time.Now().Add(-time.Second * 40).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 30).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 20).Add(-10 * time.Millisecond),
					time.Now().Add(-time.Second * 15).Add(-10 * time.Millisecond),
				},
			},
			args: args{
				last: time.Second * 50,
			},
			want: 0,
		},
		{
			name: "test empty",
			fields: fields{
				MaxRecordCount: 10,
			},
			args: args{
				last: time.Second * 50,
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TimeSeriesRecorder{
				MaxRecordCount: tt.fields.MaxRecordCount,
				Interval:       time.Second * 10,
				Records:        tt.fields.Records,
				mu:             &sync.Mutex{},
			}
			if got := r.GetRecordsIn(tt.args.last); got != tt.want {
				t.Errorf("GetRecordsIn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeSeriesRecorder_AddRecord(t *testing.T) {
	r := NewTimeSeriesRecorder(3, time.Second)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.AddRecord(base.Add(time.Duration(i) * time.Second))
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	if got := r.GetLastRecord(); !got.Equal(base.Add(4 * time.Second)) {
		t.Errorf("GetLastRecord() = %v, want %v", got, base.Add(4*time.Second))
	}
}
