package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/reading"
)

// HistoryCapacity is the number of power points kept for the live graph.
const HistoryCapacity = 120

// widgetPowerFloor is the power below which the widget shows N/A.
const widgetPowerFloor = 0.1

// NormalizedSample is one reading converted to SI units.
type NormalizedSample struct {
	CurrentAmps  float64   `json:"currentAmps"`
	VoltageVolts float64   `json:"voltageVolts"`
	PowerWatts   float64   `json:"powerWatts"`
	Timestamp    time.Time `json:"timestamp"`
}

// PowerPoint is one point of the live power graph.
type PowerPoint struct {
	Time       time.Time `json:"time"`
	PowerWatts float64   `json:"powerWatts"`
}

// Snapshot is everything a surface needs to render one tick.
type Snapshot struct {
	Sample             NormalizedSample   `json:"sample"`
	Extrema            SessionExtrema     `json:"extrema"`
	ExtremaReset       bool               `json:"extremaReset"`
	AverageCurrentAmps float64            `json:"averageCurrentAmps"`
	AverageReady       bool               `json:"averageReady"`
	Estimate           Estimate           `json:"estimate"`
	EstimateText       string             `json:"estimateText"`
	BatteryPercent     float64            `json:"batteryPercent"`
	TemperatureC       float64            `json:"temperatureC"`
	Status             reading.Status     `json:"status"`
	Plugged            reading.PlugSource `json:"plugged"`
	ActivityLabel      string             `json:"activityLabel"`
	WidgetLabel        string             `json:"widgetLabel"`
	// CurrentFromStore is true when the reading had no current and the last
	// persisted one was used.
	CurrentFromStore bool `json:"currentFromStore"`
}

// Charging reports whether the snapshot was taken while charging.
func (s Snapshot) Charging() bool {
	return s.Status.IsCharging()
}

// WidgetPower is the power text on the widget. Power is shown whenever a
// charger is plugged in, even if the battery is full.
func (s Snapshot) WidgetPower() string {
	if s.Plugged == reading.PlugNone || s.Sample.PowerWatts <= widgetPowerFloor {
		return "N/A"
	}
	return fmt.Sprintf("%.1fW", s.Sample.PowerWatts)
}

// WidgetView is the text content of the home screen widget.
type WidgetView struct {
	Percent     string `json:"percent"`
	Power       string `json:"power"`
	Label       string `json:"label"`
	Temperature string `json:"temperature"`
}

func (s Snapshot) Widget() WidgetView {
	return WidgetView{
		Percent:     fmt.Sprintf("%.0f%%", s.BatteryPercent),
		Power:       "Power: " + s.WidgetPower(),
		Label:       s.WidgetLabel,
		Temperature: "Temp: " + FormatTemperature(s.TemperatureC),
	}
}

// NotificationView is the text content of the persistent notification.
type NotificationView struct {
	Summary       string `json:"summary"`
	Percent       string `json:"percent"`
	Power         string `json:"power"`
	Temperature   string `json:"temperature"`
	TimeRemaining string `json:"timeRemaining"`
}

func (s Snapshot) Notification() NotificationView {
	power := "Discharging"
	if s.Status.IsPluggedState() {
		power = FormatPower(s.Sample.PowerWatts)
	}
	return NotificationView{
		Summary:       "Battery Info",
		Percent:       fmt.Sprintf("%.0f%%", s.BatteryPercent),
		Power:         power,
		Temperature:   fmt.Sprintf("%.0f°C", s.TemperatureC),
		TimeRemaining: s.EstimateText,
	}
}

// Body joins the notification fields into one line.
func (n NotificationView) Body() string {
	return fmt.Sprintf("%s | %s | %s | %s", n.Percent, n.Power, n.Temperature, n.TimeRemaining)
}

// Monitor runs the reading pipeline. Tick is meant to be called by a single
// sampler; the getters are safe to call from anywhere.
type Monitor struct {
	mu      sync.RWMutex
	store   StateStore
	tracker *Tracker
	window  *AverageWindow
	history []PowerPoint
	latest  *Snapshot
}

// NewMonitor returns a monitor whose extrema are seeded from store. store
// may be nil.
func NewMonitor(store StateStore) *Monitor {
	return &Monitor{
		store:   store,
		tracker: NewTracker(store),
		window:  NewAverageWindow(),
		history: make([]PowerPoint, 0, HistoryCapacity),
	}
}

// Tick feeds one raw reading through the pipeline.
func (m *Monitor) Tick(r reading.RawReading) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	currentRaw, fromStore := m.resolveCurrent(r)
	amps := NormalizeCurrent(currentRaw)
	volts := NormalizeVoltage(float64(r.VoltageRaw))
	charging := r.Status.IsCharging()

	power, err := m.tracker.Update(volts, amps, charging)
	if err != nil {
		logrus.WithError(err).Warn("failed to persist session extrema")
	}

	avg, avgReady := m.window.Push(amps)
	pct := r.Percent()
	est := EstimateRemaining(EstimateInput{
		BatteryPct:       pct,
		VoltageVolts:     volts,
		AvgCurrentAmps:   avg,
		IsCharging:       charging,
		ChargeCounterRaw: r.ChargeCounterRaw,
	})

	point := PowerPoint{Time: ts, PowerWatts: power.PowerWatts}
	if len(m.history) >= HistoryCapacity {
		copy(m.history, m.history[1:])
		m.history[len(m.history)-1] = point
	} else {
		m.history = append(m.history, point)
	}

	m.writeThrough(volts, r.TemperatureC(), avg, avgReady)

	snap := Snapshot{
		Sample: NormalizedSample{
			CurrentAmps:  amps,
			VoltageVolts: volts,
			PowerWatts:   power.PowerWatts,
			Timestamp:    ts,
		},
		Extrema:            m.tracker.Extrema(),
		ExtremaReset:       power.Reset,
		AverageCurrentAmps: avg,
		AverageReady:       avgReady,
		Estimate:           est,
		EstimateText:       est.String(),
		BatteryPercent:     pct,
		TemperatureC:       r.TemperatureC(),
		Status:             r.Status,
		Plugged:            r.Plugged,
		ActivityLabel:      ChargingLabel(power.PowerWatts, r.Status.IsPluggedState(), r.Plugged, ActivityBands),
		WidgetLabel:        ChargingLabel(power.PowerWatts, r.Status.IsPluggedState(), r.Plugged, WidgetBands),
		CurrentFromStore:   fromStore,
	}
	m.latest = &snap
	return snap
}

func (m *Monitor) resolveCurrent(r reading.RawReading) (int64, bool) {
	if !r.HasCurrent() {
		if m.store == nil {
			return 0, true
		}
		last := m.store.LastCurrentNow()
		logrus.WithField("lastCurrentNow", last).Debug("current unavailable, using last known value")
		return last, true
	}
	if m.store != nil {
		if err := m.store.SetLastCurrentNow(r.CurrentRaw); err != nil {
			logrus.WithError(err).Warn("failed to persist last current")
		}
	}
	return r.CurrentRaw, false
}

func (m *Monitor) writeThrough(volts, tempC, avgAmps float64, avgReady bool) {
	if m.store == nil {
		return
	}
	if err := m.store.SetVoltage(volts); err != nil {
		logrus.WithError(err).Warn("failed to persist voltage")
	}
	if err := m.store.SetTemperature(tempC); err != nil {
		logrus.WithError(err).Warn("failed to persist temperature")
	}
	if avgReady {
		if err := m.store.SetAvgPower(volts * avgAmps); err != nil {
			logrus.WithError(err).Warn("failed to persist average power")
		}
	}
}

// Latest returns the last snapshot. ok is false before the first tick.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return Snapshot{}, false
	}
	return *m.latest, true
}

// History returns a copy of the live power graph, oldest first.
func (m *Monitor) History() []PowerPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PowerPoint, len(m.history))
	copy(out, m.history)
	return out
}

// Extrema returns the current session extrema.
func (m *Monitor) Extrema() SessionExtrema {
	return m.tracker.Extrema()
}

// ResetExtrema zeroes the session extrema and persists them.
func (m *Monitor) ResetExtrema() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.tracker.Reset(); err != nil {
		return err
	}
	if m.latest != nil {
		m.latest.Extrema = m.tracker.Extrema()
	}
	return nil
}
