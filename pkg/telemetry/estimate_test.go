package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAverageWindow(t *testing.T) {
	w := NewAverageWindow()

	for i := 1; i < AverageWindowCapacity; i++ {
		_, ok := w.Push(float64(i))
		assert.False(t, ok)
		assert.Equal(t, i, w.Len())
	}

	mean, ok := w.Push(10)
	assert.True(t, ok)
	assert.InDelta(t, 5.5, mean, 1e-9)
	assert.Equal(t, 0, w.Len())

	mean, ok = w.Push(100)
	assert.True(t, ok)
	assert.InDelta(t, 5.5, mean, 1e-9, "11th push must not emit a new mean")
	assert.Equal(t, 1, w.Len())
}

func TestEstimateRemainingIndeterminate(t *testing.T) {
	tests := []struct {
		name string
		in   EstimateInput
	}{
		{
			name: "no charge counter",
			in:   EstimateInput{BatteryPct: 50, VoltageVolts: 4, AvgCurrentAmps: 1, ChargeCounterRaw: 0},
		},
		{
			name: "negative charge counter",
			in:   EstimateInput{BatteryPct: 50, VoltageVolts: 4, AvgCurrentAmps: 1, ChargeCounterRaw: -10},
		},
		{
			name: "no battery percent",
			in:   EstimateInput{BatteryPct: 0, VoltageVolts: 4, AvgCurrentAmps: 1, ChargeCounterRaw: 2500},
		},
		{
			name: "no average current",
			in:   EstimateInput{BatteryPct: 50, VoltageVolts: 4, AvgCurrentAmps: 0, ChargeCounterRaw: 2500},
		},
		{
			name: "no voltage",
			in:   EstimateInput{BatteryPct: 50, VoltageVolts: 0, AvgCurrentAmps: 1, ChargeCounterRaw: 2500},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateRemaining(tt.in)
			assert.True(t, got.Indeterminate)
			assert.Equal(t, "Calculating...", got.String())
			assert.Equal(t, time.Duration(0), got.Duration())
		})
	}
}

func TestEstimateRemaining(t *testing.T) {
	// 2 500 000 µAh at 50 % is a 5000 mAh (20 Wh at 4 V) battery.
	charging := EstimateRemaining(EstimateInput{
		BatteryPct:       50,
		VoltageVolts:     4,
		AvgCurrentAmps:   1,
		IsCharging:       true,
		ChargeCounterRaw: 2_500_000,
	})
	assert.False(t, charging.Indeterminate)
	assert.Equal(t, 176, charging.Minutes)
	assert.Equal(t, "2h 56m left", charging.String())

	discharging := EstimateRemaining(EstimateInput{
		BatteryPct:       50,
		VoltageVolts:     4,
		AvgCurrentAmps:   1,
		IsCharging:       false,
		ChargeCounterRaw: 2500,
	})
	assert.Equal(t, 250, discharging.Minutes)
	assert.Equal(t, "Discharging: 4h 10m left", discharging.String())
}

func TestEstimateString(t *testing.T) {
	tests := []struct {
		e    Estimate
		want string
	}{
		{e: Estimate{Minutes: 0, Charging: true}, want: "less than a minute"},
		{e: Estimate{Minutes: 0}, want: "less than a minute"},
		{e: Estimate{Minutes: 45, Charging: true}, want: "45 minutes left"},
		{e: Estimate{Minutes: 45}, want: "Discharging: 45 minutes left"},
		{e: Estimate{Minutes: 60, Charging: true}, want: "1h 0m left"},
		{e: Estimate{Minutes: 125, Charging: true}, want: "2h 5m left"},
		{e: Indeterminate, want: "Calculating..."},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.String())
		})
	}
}
