package telemetry

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// minPowerFloor keeps the minimum from reading as 0 W right after a connect.
const minPowerFloor = 0.1

// StateStore persists the scalars the pipeline needs across restarts.
type StateStore interface {
	MinPower() float64
	MaxPower() float64
	SetMinPower(float64) error
	SetMaxPower(float64) error
	SetAvgPower(float64) error
	LastCurrentNow() int64
	SetLastCurrentNow(int64) error
	SetVoltage(float64) error
	SetTemperature(float64) error
}

// SessionExtrema is the min/max charging power since the last charger connect.
type SessionExtrema struct {
	MinPowerWatts    float64   `json:"minPowerWatts"`
	MaxPowerWatts    float64   `json:"maxPowerWatts"`
	ChargerConnected bool      `json:"chargerConnected"`
	SessionID        string    `json:"sessionId,omitempty"`
	StartedAt        time.Time `json:"startedAt"`
}

// Power is the result of one Tracker update.
type Power struct {
	PowerWatts    float64 `json:"powerWatts"`
	MinPowerWatts float64 `json:"minPowerWatts"`
	MaxPowerWatts float64 `json:"maxPowerWatts"`
	// Reset is true on the tick a charger connect was observed.
	Reset bool `json:"reset"`
}

// Tracker computes charging power and maintains session extrema. Every change
// to an extremum is written through to the store.
type Tracker struct {
	mu    sync.Mutex
	store StateStore
	state SessionExtrema
	now   func() time.Time
}

// NewTracker returns a tracker seeded with the extrema persisted in store.
// Negative persisted values mean "never set" and are read as 0.
func NewTracker(store StateStore) *Tracker {
	t := &Tracker{
		store: store,
		now:   time.Now,
	}
	if store != nil {
		t.state.MinPowerWatts = math.Max(0, store.MinPower())
		t.state.MaxPowerWatts = math.Max(0, store.MaxPower())
	}
	return t
}

// Update feeds one normalized reading into the tracker.
func (t *Tracker) Update(voltageVolts, currentAmps float64, isCharging bool) (Power, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Power{PowerWatts: voltageVolts * currentAmps}
	var errs []error

	if !isCharging {
		t.state.ChargerConnected = false
		p.MinPowerWatts = t.state.MinPowerWatts
		p.MaxPowerWatts = t.state.MaxPowerWatts
		return p, nil
	}

	if !t.state.ChargerConnected {
		t.state = SessionExtrema{
			ChargerConnected: true,
			SessionID:        uuid.NewString(),
			StartedAt:        t.now(),
		}
		p.Reset = true
		errs = append(errs, t.saveMin(), t.saveMax())
		logrus.WithField("session", t.state.SessionID).Debug("charger connected, session extrema reset")
	}

	if t.state.MinPowerWatts == 0 || p.PowerWatts < t.state.MinPowerWatts {
		t.state.MinPowerWatts = math.Max(minPowerFloor, p.PowerWatts)
		errs = append(errs, t.saveMin())
	}

	if p.PowerWatts > t.state.MaxPowerWatts {
		t.state.MaxPowerWatts = p.PowerWatts
		errs = append(errs, t.saveMax())
	}

	p.MinPowerWatts = t.state.MinPowerWatts
	p.MaxPowerWatts = t.state.MaxPowerWatts

	for _, err := range errs {
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// Reset zeroes the extrema and persists them. The connection state is kept.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.MinPowerWatts = 0
	t.state.MaxPowerWatts = 0
	if err := t.saveMin(); err != nil {
		return err
	}
	return t.saveMax()
}

// Extrema returns a copy of the current session state.
func (t *Tracker) Extrema() SessionExtrema {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) saveMin() error {
	if t.store == nil {
		return nil
	}
	return pkgerrors.Wrap(t.store.SetMinPower(t.state.MinPowerWatts), "failed to persist min power")
}

func (t *Tracker) saveMax() error {
	if t.store == nil {
		return nil
	}
	return pkgerrors.Wrap(t.store.SetMaxPower(t.state.MaxPowerWatts), "failed to persist max power")
}
