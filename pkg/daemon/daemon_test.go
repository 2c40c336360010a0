package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battwatt/pkg/config"
	"github.com/charlie0129/battwatt/pkg/events"
	"github.com/charlie0129/battwatt/pkg/metrics"
	"github.com/charlie0129/battwatt/pkg/reading"
	"github.com/charlie0129/battwatt/pkg/store"
	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/types"
	"github.com/charlie0129/battwatt/pkg/utils/ptr"
)

var (
	chargingReading = reading.RawReading{
		CurrentRaw:         1_500_000,
		VoltageRaw:         4200,
		Level:              50,
		Scale:              100,
		TemperatureTenthsC: 312,
		Status:             reading.StatusCharging,
		Plugged:            reading.PlugAC,
	}
	dischargingReading = reading.RawReading{
		CurrentRaw:         -400_000,
		VoltageRaw:         3900,
		Level:              49,
		Scale:              100,
		TemperatureTenthsC: 300,
		Status:             reading.StatusDischarging,
		Plugged:            reading.PlugNone,
	}
)

func newTestDaemon(t *testing.T, reader *reading.MockReader, dsn string) *Daemon {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var samples *store.SampleLog
	if dsn != "" {
		var err error
		samples, err = store.NewSampleLog(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = samples.Close() })
	}

	prom, err := metrics.NewPromSink(prometheus.NewRegistry())
	require.NoError(t, err)

	return New(Options{
		Config:  config.NewFileFromConfig(nil, ""),
		Reader:  reader,
		State:   store.NewMemoryState(),
		Samples: samples,
		Prom:    prom,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func nextEvent(t *testing.T, ch chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return events.Event{}
	}
}

func TestSnapshotBeforeFirstReading(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()

	w := do(t, r, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.SnapshotResponse](t, w)
	assert.False(t, resp.Configured)
	assert.Nil(t, resp.Snapshot)

	w = do(t, r, http.MethodGet, "/widget", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, r, http.MethodGet, "/notification", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSampleOnceFeedsSurfaces(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()

	ch := d.hub.Subscribe()
	require.True(t, d.sampleOnce(context.Background()))

	ev := nextEvent(t, ch)
	assert.Equal(t, events.Snapshot, ev.Name)
	snap, err := events.DecodeAs[telemetry.Snapshot](ev)
	require.NoError(t, err)
	assert.InDelta(t, 6.3, snap.Sample.PowerWatts, 1e-9)

	ev = nextEvent(t, ch)
	assert.Equal(t, events.ChargerConnected, ev.Name)
	session, err := events.DecodeAs[events.SessionEvent](ev)
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)

	w := do(t, r, http.MethodGet, "/snapshot", "")
	resp := decode[types.SnapshotResponse](t, w)
	require.NotNil(t, resp.Snapshot)
	assert.InDelta(t, 6.3, resp.Snapshot.Sample.PowerWatts, 1e-9)

	w = do(t, r, http.MethodGet, "/widget", "")
	require.Equal(t, http.StatusOK, w.Code)
	widget := decode[telemetry.WidgetView](t, w)
	assert.Equal(t, "50%", widget.Percent)
	assert.Equal(t, "Power: 6.3W", widget.Power)
	assert.Equal(t, "Temp: 31.2°C", widget.Temperature)
	assert.Contains(t, widget.Label, "Normal")

	w = do(t, r, http.MethodGet, "/notification", "")
	require.Equal(t, http.StatusOK, w.Code)
	n := decode[telemetry.NotificationView](t, w)
	assert.Equal(t, "6.3 W", n.Power)
	assert.Equal(t, "31°C", n.Temperature)
	assert.Equal(t, "Calculating...", n.TimeRemaining)

	w = do(t, r, http.MethodGet, "/history/live", "")
	live := decode[types.LiveHistoryResponse](t, w)
	assert.Len(t, live.Points, 1)

	w = do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "battwatt_ticks_total 1")
	assert.Contains(t, w.Body.String(), "battwatt_charging_sessions_total 1")
}

func TestSampleOnceChargerDisconnected(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading, dischargingReading), "")

	require.True(t, d.sampleOnce(context.Background()))
	ch := d.hub.Subscribe()
	require.True(t, d.sampleOnce(context.Background()))

	assert.Equal(t, events.Snapshot, nextEvent(t, ch).Name)
	assert.Equal(t, events.ChargerDisconnected, nextEvent(t, ch).Name)

	snap, ok := d.monitor.Latest()
	require.True(t, ok)
	assert.Equal(t, "Discharging", snap.Notification().Power)
	assert.Equal(t, "Power: N/A", snap.Widget().Power)
}

func TestSampleOnceReadError(t *testing.T) {
	m := reading.NewMockReader(4000, chargingReading)
	m.SetError(errors.New("no such device"))
	d := newTestDaemon(t, m, "")

	assert.False(t, d.sampleOnce(context.Background()))
	_, ok := d.monitor.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, d.recorder.Len())

	w := do(t, d.setupRoutes(), http.MethodGet, "/metrics", "")
	assert.Contains(t, w.Body.String(), "battwatt_read_errors_total 1")
}

func TestHistory(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading, dischargingReading), "file:daemon_history?mode=memory&cache=shared")
	r := d.setupRoutes()

	// Only the charging reading is logged.
	require.True(t, d.sampleOnce(context.Background()))
	require.True(t, d.sampleOnce(context.Background()))

	w := do(t, r, http.MethodGet, "/history?since=1h", "")
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[types.HistoryResponse](t, w)
	require.Len(t, hist.Samples, 1)
	assert.InDelta(t, 6.3, hist.Samples[0].PowerWatts, 1e-9)
	assert.NotEmpty(t, hist.Samples[0].SessionID)

	w = do(t, r, http.MethodGet, "/history?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/history", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/history", "")
	hist = decode[types.HistoryResponse](t, w)
	assert.Empty(t, hist.Samples)

	require.NoError(t, d.pruneCheck())
	require.NoError(t, d.pruneSamples())
}

func TestHistoryDisabled(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/history", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/history", "").Code)
	assert.Error(t, d.pruneCheck())
}

func TestProfile(t *testing.T) {
	orig := profileSampleInterval
	profileSampleInterval = time.Millisecond
	t.Cleanup(func() { profileSampleInterval = orig })

	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()

	w := do(t, r, http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/profile", `{}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[types.ProfileResponse](t, w)
	assert.True(t, resp.Configured)
	assert.Equal(t, 4000, resp.Profile.DeclaredCapacityMah)
	assert.Equal(t, 4000, resp.DetectedCapacityMah)
	assert.Equal(t, []string{"1.500A", "1.500A", "1.500A", "1.500A", "1.500A"}, resp.Pattern)

	// An explicit capacity wins over the saved one.
	w = do(t, r, http.MethodPost, "/profile", `{"capacityMah": 5000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[types.ProfileResponse](t, w)
	assert.Equal(t, 5000, resp.Profile.DeclaredCapacityMah)

	w = do(t, r, http.MethodGet, "/snapshot", "")
	assert.True(t, decode[types.SnapshotResponse](t, w).Configured)
}

func TestProfileErrors(t *testing.T) {
	orig := profileSampleInterval
	profileSampleInterval = time.Millisecond
	t.Cleanup(func() { profileSampleInterval = orig })

	d := newTestDaemon(t, reading.NewMockReader(0, chargingReading), "")
	r := d.setupRoutes()

	w := do(t, r, http.MethodPost, "/profile", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/profile", `{"capacityMah": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	noCurrent := chargingReading
	noCurrent.CurrentRaw = reading.CurrentUnavailable
	d = newTestDaemon(t, reading.NewMockReader(4000, noCurrent), "")
	_, err := d.configureProfile(context.Background(), 0)
	assert.ErrorIs(t, err, errCurrentUnavailable)
	assert.False(t, d.state.IsConfigured())
}

func TestResetExtrema(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()
	require.True(t, d.sampleOnce(context.Background()))

	w := do(t, r, http.MethodGet, "/extrema", "")
	ext := decode[telemetry.SessionExtrema](t, w)
	assert.InDelta(t, 6.3, ext.MaxPowerWatts, 1e-9)

	ch := d.hub.Subscribe()
	w = do(t, r, http.MethodDelete, "/extrema", "")
	require.Equal(t, http.StatusOK, w.Code)
	ext = decode[telemetry.SessionExtrema](t, w)
	assert.Zero(t, ext.MinPowerWatts)
	assert.Zero(t, ext.MaxPowerWatts)
	assert.Equal(t, events.ExtremaReset, nextEvent(t, ch).Name)
}

func TestConfigVersionHealth(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	r := d.setupRoutes()

	w := do(t, r, http.MethodGet, "/config", "")
	conf := decode[config.RawFileConfig](t, w)
	require.NotNil(t, conf.PollIntervalSeconds)
	assert.Equal(t, 1, *conf.PollIntervalSeconds)

	w = do(t, r, http.MethodGet, "/version", "")
	assert.NotEmpty(t, decode[types.VersionResponse](t, w).Version)

	w = do(t, r, http.MethodGet, "/health", "")
	assert.False(t, decode[types.HealthResponse](t, w).Healthy)

	require.True(t, d.sampleOnce(context.Background()))
	w = do(t, r, http.MethodGet, "/health", "")
	health := decode[types.HealthResponse](t, w)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.Samples)
	assert.Equal(t, 60, health.ExpectedSamples)
}

func TestHealthReportsPruneSchedule(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "file:daemon_health?mode=memory&cache=shared")
	r := d.setupRoutes()

	w := do(t, r, http.MethodGet, "/health", "")
	health := decode[types.HealthResponse](t, w)
	assert.False(t, health.Pruning)
	assert.Nil(t, health.NextPrune)

	require.NoError(t, d.pruner.Schedule("@every 1h"))
	d.pruner.Start()
	defer d.pruner.Stop()

	w = do(t, r, http.MethodGet, "/health", "")
	health = decode[types.HealthResponse](t, w)
	assert.True(t, health.Pruning)
	require.NotNil(t, health.NextPrune)
	assert.True(t, health.NextPrune.After(time.Now().Add(30*time.Minute)))
}

func TestHealthWithZeroPollInterval(t *testing.T) {
	d := New(Options{
		Config: config.NewFileFromConfig(&config.RawFileConfig{PollIntervalSeconds: ptr.To(0)}, ""),
		Reader: reading.NewMockReader(4000, chargingReading),
		State:  store.NewMemoryState(),
	})
	r := d.setupRoutes()

	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 60, decode[types.HealthResponse](t, w).ExpectedSamples)
}

func TestStream(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")
	require.True(t, d.sampleOnce(context.Background()))

	srv := httptest.NewServer(d.setupRoutes())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.Snapshot, ev.Name)

	// The first message is sent after subscribing, so this tick is seen.
	require.True(t, d.sampleOnce(context.Background()))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.Snapshot, ev.Name)
	snap, err := events.DecodeAs[telemetry.Snapshot](ev)
	require.NoError(t, err)
	assert.Equal(t, reading.StatusCharging, snap.Status)
}

func TestLoopsStopOnCancel(t *testing.T) {
	d := newTestDaemon(t, reading.NewMockReader(4000, chargingReading), "")

	ctx, cancel := context.WithCancel(context.Background())
	d.start(ctx)
	require.Eventually(t, func() bool {
		_, ok := d.monitor.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loops did not stop")
	}
	d.close()
}
