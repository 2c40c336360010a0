package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlie0129/battwatt/pkg/telemetry"
)

const namespace = "battwatt"

// PromSink exposes the latest snapshot as Prometheus metrics.
type PromSink struct {
	gatherer prometheus.Gatherer

	power       prometheus.Gauge
	minPower    prometheus.Gauge
	maxPower    prometheus.Gauge
	voltage     prometheus.Gauge
	current     prometheus.Gauge
	avgCurrent  prometheus.Gauge
	percent     prometheus.Gauge
	temperature prometheus.Gauge
	estimate    prometheus.Gauge
	charging    *prometheus.GaugeVec
	ticks       prometheus.Counter
	sessions    prometheus.Counter
	readErrors  prometheus.Counter
}

// NewPromSink registers the collectors on reg. If reg is nil a fresh
// registry is used. Collectors that are already registered are reused.
func NewPromSink(reg *prometheus.Registry) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &PromSink{gatherer: reg}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	var err error
	if s.power, err = register(reg, gauge("power_watts", "Instantaneous charging power")); err != nil {
		return nil, err
	}
	if s.minPower, err = register(reg, gauge("session_min_power_watts", "Minimum charging power of the current session")); err != nil {
		return nil, err
	}
	if s.maxPower, err = register(reg, gauge("session_max_power_watts", "Maximum charging power of the current session")); err != nil {
		return nil, err
	}
	if s.voltage, err = register(reg, gauge("voltage_volts", "Battery voltage")); err != nil {
		return nil, err
	}
	if s.current, err = register(reg, gauge("current_amps", "Battery current magnitude")); err != nil {
		return nil, err
	}
	if s.avgCurrent, err = register(reg, gauge("average_current_amps", "Stepped average of the battery current")); err != nil {
		return nil, err
	}
	if s.percent, err = register(reg, gauge("charge_percent", "Battery charge level")); err != nil {
		return nil, err
	}
	if s.temperature, err = register(reg, gauge("temperature_celsius", "Battery temperature")); err != nil {
		return nil, err
	}
	if s.estimate, err = register(reg, gauge("estimate_minutes", "Estimated minutes to full or empty, -1 if unknown")); err != nil {
		return nil, err
	}
	if s.charging, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "status",
		Help:      "1 for the current charging status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.ticks, err = register(reg, counter("ticks_total", "Number of processed readings")); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, counter("charging_sessions_total", "Number of charger connects observed")); err != nil {
		return nil, err
	}
	if s.readErrors, err = register(reg, counter("read_errors_total", "Number of failed battery reads")); err != nil {
		return nil, err
	}

	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Record updates every metric from s.
func (s *PromSink) Record(snap telemetry.Snapshot) {
	s.ticks.Inc()
	if snap.ExtremaReset {
		s.sessions.Inc()
	}

	s.power.Set(snap.Sample.PowerWatts)
	s.minPower.Set(snap.Extrema.MinPowerWatts)
	s.maxPower.Set(snap.Extrema.MaxPowerWatts)
	s.voltage.Set(snap.Sample.VoltageVolts)
	s.current.Set(snap.Sample.CurrentAmps)
	s.avgCurrent.Set(snap.AverageCurrentAmps)
	s.percent.Set(snap.BatteryPercent)
	s.temperature.Set(snap.TemperatureC)
	if snap.Estimate.Indeterminate {
		s.estimate.Set(-1)
	} else {
		s.estimate.Set(float64(snap.Estimate.Minutes))
	}

	s.charging.Reset()
	s.charging.WithLabelValues(string(snap.Status)).Set(1)
}

// RecordReadError counts a failed battery read.
func (s *PromSink) RecordReadError() {
	s.readErrors.Inc()
}

// Handler serves the registry in the text exposition format.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
