package reading

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// microThreshold is the magnitude above which telemetry reads a current or
// charge as µA or µAh.
const microThreshold = 10_000

// getAllBatteries is a test seam.
var getAllBatteries = battery.GetAll

// DistatusReader reads the battery through github.com/distatus/battery.
// It is used where no sysfs power_supply tree exists.
type DistatusReader struct {
	now func() time.Time
}

func NewDistatusReader() *DistatusReader {
	return &DistatusReader{now: time.Now}
}

var _ Reader = &DistatusReader{}
var _ CapacityProber = &DistatusReader{}

func (d *DistatusReader) first() (*battery.Battery, error) {
	batteries, err := getAllBatteries()
	if len(batteries) == 0 || batteries[0] == nil {
		if err == nil {
			err = ErrNoBattery
		}
		return nil, pkgerrors.Wrap(err, "failed to get battery info")
	}
	if err != nil {
		// Partial errors are common, e.g. missing design voltage.
		logrus.WithError(err).Trace("partial battery info")
	}
	return batteries[0], nil
}

// Read implements Reader.
func (d *DistatusReader) Read(ctx context.Context) (RawReading, error) {
	if err := ctx.Err(); err != nil {
		return RawReading{}, err
	}

	bat, err := d.first()
	if err != nil {
		return RawReading{}, err
	}

	r := fromBatteryValues(bat.State.String(), bat.ChargeRate, bat.Voltage, bat.Current, bat.Full)
	r.Time = d.now()
	return r, nil
}

// DesignCapacityMah implements CapacityProber. Design is in mWh.
func (d *DistatusReader) DesignCapacityMah() (int, bool) {
	bat, err := d.first()
	if err != nil {
		return 0, false
	}
	voltage := bat.DesignVoltage
	if voltage <= 0 {
		voltage = bat.Voltage
	}
	if bat.Design <= 0 || voltage <= 0 {
		return 0, false
	}
	return int(math.Round(bat.Design / voltage)), true
}

// fromBatteryValues converts distatus units (mW, V, mWh) into a RawReading.
// Current and charge are emitted so that the magnitude alone tells the unit,
// see unambiguousMicro.
func fromBatteryValues(state string, rateMilliW, volts, currentMilliWh, fullMilliWh float64) RawReading {
	r := RawReading{
		CurrentRaw: CurrentUnavailable,
		Level:      -1,
		Scale:      100,
		Status:     parseAgnosticState(state),
		Plugged:    PlugNone,
	}

	if volts > 0 {
		r.VoltageRaw = int64(math.Round(volts * 1000))
		r.CurrentRaw = int64(math.Round(unambiguousMicro(math.Abs(rateMilliW) / volts)))
		r.ChargeCounterRaw = unambiguousMicro(currentMilliWh / volts)
	}
	if fullMilliWh > 0 {
		r.Level = int(math.Round(currentMilliWh / fullMilliWh * 100))
	}
	if r.Status.IsPluggedState() {
		// Laptops charge from mains; the library does not say which port.
		r.Plugged = PlugAC
	}

	return r
}

// unambiguousMicro turns a milli value (mA, mAh) into the micro value when
// that is above microThreshold, which is read back as micro. Smaller values
// stay milli and are read back as milli.
func unambiguousMicro(milli float64) float64 {
	if micro := milli * 1000; math.Abs(micro) > microThreshold {
		return micro
	}
	return milli
}

func parseAgnosticState(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return StatusCharging
	case "full":
		return StatusFull
	case "discharging", "empty":
		return StatusDischarging
	case "idle", "not charging":
		return StatusNotCharging
	default:
		return StatusUnknown
	}
}
