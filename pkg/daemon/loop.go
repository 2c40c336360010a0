package daemon

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/events"
	"github.com/charlie0129/battwatt/pkg/reading"
	"github.com/charlie0129/battwatt/pkg/store"
	"github.com/charlie0129/battwatt/pkg/telemetry"
)

// recorderSize is the number of sampler ticks kept for gap detection.
const recorderSize = 120

// sampleLoop ticks the monitor until ctx is done.
func (d *Daemon) sampleLoop(ctx context.Context) {
	logrus.Debugln("sample loop starts")
	defer logrus.Debugln("sample loop stopped")

	for {
		d.sampleOnce(ctx)

		interval := d.conf.PollInterval()
		d.recorder.SetInterval(interval)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// sampleOnce reads the battery once and feeds every consumer of the result.
// It returns false if the reading failed.
func (d *Daemon) sampleOnce(ctx context.Context) bool {
	raw, err := d.reader.Read(ctx)
	if err != nil {
		logrus.WithError(err).Debug("failed to read battery")
		if d.prom != nil {
			d.prom.RecordReadError()
		}
		return false
	}

	if last := d.recorder.GetLastRecord(); !last.IsZero() {
		if gap := time.Since(last); gap > 2*d.recorder.Interval+time.Second {
			logrus.WithField("gap", gap.Round(time.Second)).Info("sampler missed ticks, system probably slept")
		}
	}
	d.recorder.AddRecordNow()

	prev, hadPrev := d.monitor.Latest()
	snap := d.monitor.Tick(raw)

	d.printStatus(snap)
	d.hub.Publish(events.Snapshot, snap)

	switch {
	case snap.ExtremaReset:
		d.hub.Publish(events.ChargerConnected, sessionEvent(snap))
	case hadPrev && prev.Charging() && !snap.Charging():
		d.hub.Publish(events.ChargerDisconnected, sessionEvent(prev))
	}

	if d.prom != nil {
		d.prom.Record(snap)
	}

	if d.samples != nil && d.conf.SampleLog() && snap.Charging() {
		err := d.samples.Append(ctx, store.Sample{
			Time:       snap.Sample.Timestamp,
			PowerWatts: snap.Sample.PowerWatts,
			SessionID:  snap.Extrema.SessionID,
		})
		if err != nil {
			logrus.WithError(err).Warn("failed to log sample")
		}
	}

	return true
}

func sessionEvent(s telemetry.Snapshot) events.SessionEvent {
	return events.SessionEvent{
		SessionID:  s.Extrema.SessionID,
		PowerWatts: s.Sample.PowerWatts,
		Ts:         s.Sample.Timestamp.UnixMilli(),
	}
}

// loopStatus is the part of a snapshot worth logging. Power values are
// formatted so jitter below the display precision does not count as a change.
type loopStatus struct {
	status   reading.Status
	plugged  reading.PlugSource
	percent  float64
	power    string
	minPower string
	maxPower string
	estimate string
}

func (d *Daemon) printStatus(s telemetry.Snapshot) {
	currentStatus := loopStatus{
		status:   s.Status,
		plugged:  s.Plugged,
		percent:  s.BatteryPercent,
		power:    telemetry.FormatPower(s.Sample.PowerWatts),
		minPower: telemetry.FormatPower(s.Extrema.MinPowerWatts),
		maxPower: telemetry.FormatPower(s.Extrema.MaxPowerWatts),
		estimate: s.EstimateText,
	}

	fields := logrus.Fields{
		"status":   currentStatus.status,
		"plugged":  currentStatus.plugged,
		"percent":  currentStatus.percent,
		"power":    currentStatus.power,
		"minPower": currentStatus.minPower,
		"maxPower": currentStatus.maxPower,
		"estimate": currentStatus.estimate,
	}

	d.statusMu.Lock()
	defer d.statusMu.Unlock()

	defer func() { d.lastPrintTime = time.Now() }()

	// Skip printing if the last print was less than one interval+1 seconds
	// ago and everything is the same.
	if time.Since(d.lastPrintTime) < d.conf.PollInterval()+time.Second && d.lastStatus == currentStatus {
		logrus.WithFields(fields).Trace("sample loop status")
		return
	}

	logrus.WithFields(fields).Debug("sample loop status")

	d.lastStatus = currentStatus
}
