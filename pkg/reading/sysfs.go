package reading

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPowerSupplyPath is where Linux and Android expose power supplies.
const DefaultPowerSupplyPath = "/sys/class/power_supply"

// ErrNoBattery is returned when no power supply of type Battery exists.
var ErrNoBattery = pkgerrors.New("no battery found")

// SysfsReader reads the first battery found under a power_supply directory.
type SysfsReader struct {
	root string
	now  func() time.Time
}

// NewSysfsReader returns a reader rooted at root. An empty root uses
// DefaultPowerSupplyPath.
func NewSysfsReader(root string) *SysfsReader {
	if root == "" {
		root = DefaultPowerSupplyPath
	}
	return &SysfsReader{
		root: root,
		now:  time.Now,
	}
}

var _ Reader = &SysfsReader{}
var _ CapacityProber = &SysfsReader{}

// Read implements Reader.
func (s *SysfsReader) Read(ctx context.Context) (RawReading, error) {
	if err := ctx.Err(); err != nil {
		return RawReading{}, err
	}

	bat, supplies, err := s.scan()
	if err != nil {
		return RawReading{}, err
	}

	r := RawReading{
		CurrentRaw: CurrentUnavailable,
		Scale:      100,
		Status:     StatusUnknown,
		Plugged:    PlugNone,
		Time:       s.now(),
	}

	// voltage_now is in µV. RawReading carries mV so that the voltage
	// heuristic (> 100 means mV) keeps working.
	voltageMicro, voltageErr := readInt(bat, "voltage_now")
	if voltageErr == nil {
		r.VoltageRaw = voltageMicro / 1000
	}

	if cur, err := readInt(bat, "current_now"); err == nil {
		r.CurrentRaw = cur
	} else if powerMicro, err := readInt(bat, "power_now"); err == nil && voltageMicro > 0 {
		// Energy-reporting batteries have no current_now. I = P / V, in µA.
		r.CurrentRaw = int64(float64(powerMicro) / (float64(voltageMicro) / 1e6))
	}

	if level, err := readInt(bat, "capacity"); err == nil {
		r.Level = int(level)
	} else {
		r.Level = -1
	}

	if temp, err := readInt(bat, "temp"); err == nil {
		r.TemperatureTenthsC = int(temp)
	}

	if status, err := readString(bat, "status"); err == nil {
		r.Status = parseStatus(status)
	}

	if cc, err := readInt(bat, "charge_counter"); err == nil {
		r.ChargeCounterRaw = float64(cc)
	} else if cn, err := readInt(bat, "charge_now"); err == nil {
		r.ChargeCounterRaw = float64(cn)
	}

	r.Plugged = plugSource(supplies)

	return r, nil
}

// DesignCapacityMah implements CapacityProber using charge_full_design (µAh).
func (s *SysfsReader) DesignCapacityMah() (int, bool) {
	bat, _, err := s.scan()
	if err != nil {
		return 0, false
	}
	design, err := readInt(bat, "charge_full_design")
	if err != nil || design <= 0 {
		return 0, false
	}
	return int(design / 1000), true
}

// scan returns the first battery directory and all non-battery supplies.
func (s *SysfsReader) scan() (string, []string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", nil, pkgerrors.Wrapf(err, "failed to read %s", s.root)
	}

	var battery string
	var supplies []string
	for _, entry := range entries {
		dir := filepath.Join(s.root, entry.Name())
		typ, err := readString(dir, "type")
		if err != nil {
			continue
		}
		if typ == "Battery" {
			if battery == "" {
				battery = dir
			}
			continue
		}
		supplies = append(supplies, dir)
	}

	if battery == "" {
		return "", nil, ErrNoBattery
	}

	return battery, supplies, nil
}

func plugSource(supplies []string) PlugSource {
	for _, dir := range supplies {
		online, err := readInt(dir, "online")
		if err != nil || online != 1 {
			continue
		}
		typ, _ := readString(dir, "type")
		switch typ {
		case "Mains":
			return PlugAC
		case "USB", "USB_C", "USB_PD", "USB_DCP", "USB_CDP":
			return PlugUSB
		case "Wireless":
			return PlugWireless
		default:
			logrus.WithField("type", typ).Trace("unknown online power supply type")
		}
	}
	return PlugNone
}

func parseStatus(s string) Status {
	switch s {
	case "Charging":
		return StatusCharging
	case "Full":
		return StatusFull
	case "Discharging":
		return StatusDischarging
	case "Not charging":
		return StatusNotCharging
	default:
		return StatusUnknown
	}
}

func readString(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readInt(dir, name string) (int64, error) {
	s, err := readString(dir, name)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}
