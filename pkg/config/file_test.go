package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "battwatt.json"))
	require.NoError(t, err)

	assert.Equal(t, time.Second, f.PollInterval())
	assert.Equal(t, 5*time.Second, f.NotificationInterval())
	assert.Equal(t, 2*time.Second, f.WidgetInterval())
	assert.Equal(t, "/var/lib/battwatt", f.DataDir())
	assert.Equal(t, "/sys/class/power_supply", f.PowerSupplyPath())
	assert.True(t, f.SampleLog())
	assert.Equal(t, 24*time.Hour, f.SampleRetention())
	assert.Equal(t, "@every 1h", f.PruneSchedule())
	assert.False(t, f.Notification())
	assert.Equal(t, "battwatt/widget", f.MQTTTopic())
	assert.True(t, f.Metrics())
	assert.False(t, f.AllowNonRootAccess())
}

func TestFileSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battwatt.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	f.SetPollInterval(3 * time.Second)
	f.SetNotification(true)
	f.SetSampleRetention(48 * time.Hour)
	f.SetMQTTBroker("tcp://localhost:1883")
	require.NoError(t, f.Save())

	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, g.PollInterval())
	assert.True(t, g.Notification())
	assert.Equal(t, 48*time.Hour, g.SampleRetention())
	assert.Equal(t, "tcp://localhost:1883", g.MQTTBroker())
	// Untouched keys keep their defaults.
	assert.Equal(t, 2*time.Second, g.WidgetInterval())
}

func TestFileLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battwatt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dataDir": "/tmp/bw", "influxToken": "secret"}`), 0o644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/bw", f.DataDir())
	assert.Equal(t, "secret", f.InfluxToken())
	assert.Equal(t, "<redacted>", *f.Snapshot().InfluxToken)
	assert.Equal(t, 1, *f.Snapshot().PollIntervalSeconds)
}

func TestFileNonPositiveIntervalsUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battwatt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "pollIntervalSeconds": 0,
  "notificationIntervalSeconds": -3,
  "widgetIntervalSeconds": 0,
  "sampleRetentionHours": -1
}`), 0o644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, f.PollInterval())
	assert.Equal(t, 5*time.Second, f.NotificationInterval())
	assert.Equal(t, 2*time.Second, f.WidgetInterval())
	assert.Equal(t, 24*time.Hour, f.SampleRetention())
	assert.Equal(t, 1, *f.Snapshot().PollIntervalSeconds)
}

func TestFileLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battwatt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestFileSetterValidation(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	assert.Panics(t, func() { f.SetPollInterval(time.Millisecond) })
	assert.Panics(t, func() { f.SetSampleRetention(time.Minute) })
}
