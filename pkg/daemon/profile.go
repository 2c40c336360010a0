package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/store"
	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/types"
)

var (
	// profileSamples is the number of current readings in a pattern.
	profileSamples = 5
	// profileSampleInterval is the time between two pattern readings.
	profileSampleInterval = time.Second
)

var (
	errCapacityUnknown    = errors.New("battery capacity could not be detected, specify it explicitly")
	errCurrentUnavailable = errors.New("battery does not report its current")
	errInvalidCapacity    = errors.New("capacity must be positive")
)

// configureProfile collects a current pattern and saves it along with the
// battery capacity. The capacity is taken from requested, then the saved
// profile, then the battery itself.
func (d *Daemon) configureProfile(ctx context.Context, requested int) (*types.ProfileResponse, error) {
	if requested < 0 {
		return nil, errInvalidCapacity
	}

	d.profileMu.Lock()
	defer d.profileMu.Unlock()

	detected, detectedOK := d.reader.DesignCapacityMah()

	capacity := requested
	if capacity == 0 {
		capacity = d.state.Capacity()
	}
	if capacity <= 0 && detectedOK {
		capacity = detected
	}
	if capacity <= 0 {
		return nil, errCapacityUnknown
	}

	pattern := make([]float64, 0, profileSamples)
	for i := 0; i < profileSamples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(profileSampleInterval):
			}
		}

		r, err := d.reader.Read(ctx)
		if err != nil {
			logrus.WithError(err).Debug("failed to read battery for current pattern")
			continue
		}
		if !r.HasCurrent() {
			continue
		}
		pattern = append(pattern, telemetry.NormalizeCurrent(r.CurrentRaw))
	}
	if len(pattern) == 0 {
		return nil, errCurrentUnavailable
	}

	p := store.CapacityProfile{
		DeclaredCapacityMah:    capacity,
		ObservedCurrentPattern: pattern,
	}
	if err := d.state.SaveCapacityProfile(p); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"capacity": capacity,
		"pattern":  formatPattern(pattern),
	}).Info("capacity profile saved")

	return d.profileResponse(), nil
}

func (d *Daemon) profileResponse() *types.ProfileResponse {
	resp := &types.ProfileResponse{
		Configured: d.state.IsConfigured(),
		Profile: store.CapacityProfile{
			DeclaredCapacityMah:    d.state.Capacity(),
			ObservedCurrentPattern: d.state.CurrentPattern(),
		},
		Pattern: formatPattern(d.state.CurrentPattern()),
	}
	if mah, ok := d.reader.DesignCapacityMah(); ok {
		resp.DetectedCapacityMah = mah
	}
	return resp
}

func formatPattern(values []float64) []string {
	ret := make([]string, 0, len(values))
	for _, v := range values {
		ret = append(ret, telemetry.FormatCurrent(v))
	}
	return ret
}
