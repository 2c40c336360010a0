package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battwatt/pkg/client"
	"github.com/charlie0129/battwatt/pkg/reading"
	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/types"
)

func testSnapshot() *telemetry.Snapshot {
	m := telemetry.NewMonitor(nil)
	snap := m.Tick(reading.RawReading{
		CurrentRaw:         1_500_000,
		VoltageRaw:         4200,
		Level:              80,
		Scale:              100,
		TemperatureTenthsC: 305,
		Status:             reading.StatusCharging,
		Plugged:            reading.PlugUSB,
	})
	return &snap
}

func TestPrintDashboard(t *testing.T) {
	var buf bytes.Buffer
	printDashboard(&buf, testSnapshot())
	out := buf.String()

	assert.Contains(t, out, "Power: 6.3 W")
	assert.Contains(t, out, "Session max power: 6.3 W")
	assert.Contains(t, out, "Current charge: 80.0%")
	assert.Contains(t, out, "Voltage: 4.2V")
	assert.Contains(t, out, "Current: 1.500A")
	assert.Contains(t, out, "Temperature: 30.5°C")
	assert.Contains(t, out, "Time remaining: Calculating...")
	assert.Contains(t, out, "(USB Charging)")
	assert.NotContains(t, out, "Average current")
}

func TestNewStatusJSON(t *testing.T) {
	out := newStatusJSON(testSnapshot())
	assert.Equal(t, "charging", out.State)
	assert.Equal(t, "usb", out.Plugged)
	assert.InDelta(t, 6.3, out.PowerWatts, 1e-9)
	assert.NotEmpty(t, out.SessionID)
	assert.Nil(t, out.AverageCurrentAmps)
	assert.Nil(t, out.TimeRemainingMinutes)
	assert.Equal(t, "Calculating...", out.TimeRemaining)
}

func TestSnapshotFromResponse(t *testing.T) {
	_, err := snapshotFromResponse(&types.SnapshotResponse{Configured: false, Snapshot: testSnapshot()})
	assert.True(t, errors.Is(err, client.ErrNotConfigured))

	_, err = snapshotFromResponse(&types.SnapshotResponse{Configured: true})
	assert.Equal(t, errNoReading, err)

	snap, err := snapshotFromResponse(&types.SnapshotResponse{Configured: true, Snapshot: testSnapshot()})
	require.NoError(t, err)
	assert.Equal(t, reading.StatusCharging, snap.Status)
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"daemon", "status", "watch", "configure", "history", "extrema", "health", "install", "uninstall", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	sub, _, err := cmd.Find([]string{"history", "clear"})
	require.NoError(t, err)
	assert.Equal(t, "clear", sub.Name())

	sub, _, err = cmd.Find([]string{"extrema", "reset"})
	require.NoError(t, err)
	assert.Equal(t, "reset", sub.Name())
}
