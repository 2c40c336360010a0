package store

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/utils/ptr"
)

// ErrNotConfigured is returned when no capacity profile has been saved yet.
var ErrNotConfigured = pkgerrors.New("battery capacity is not configured")

const unset = -1

var _ telemetry.StateStore = &State{}

// CapacityProfile is saved once by the first-run configuration.
type CapacityProfile struct {
	DeclaredCapacityMah    int       `json:"declaredCapacityMah"`
	ObservedCurrentPattern []float64 `json:"observedCurrentPattern"`
}

// RawState is the on-disk form of State. Missing keys read as their
// defaults.
type RawState struct {
	Capacity       *int     `json:"capacity,omitempty"`
	CurrentPattern *string  `json:"currentPattern,omitempty"`
	MinPower       *float64 `json:"minPower,omitempty"`
	MaxPower       *float64 `json:"maxPower,omitempty"`
	AvgPower       *float64 `json:"avgPower,omitempty"`
	LastCurrentNow *int64   `json:"lastCurrentNow,omitempty"`
	Voltage        *float64 `json:"voltage,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// State is a small JSON key/value file. Every setter writes the file through
// unless the value did not change.
type State struct {
	s        *RawState
	mu       *sync.RWMutex
	filepath string
}

func NewState(path string) (*State, error) {
	st := &State{
		filepath: path,
		mu:       &sync.RWMutex{},
	}
	err := st.Load()
	if err != nil {
		return nil, err
	}

	return st, nil
}

// NewMemoryState returns a state that is never written to disk.
func NewMemoryState() *State {
	return &State{
		s:  &RawState{},
		mu: &sync.RWMutex{},
	}
}

func (st *State) Capacity() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.Capacity, unset)
}

func (st *State) CurrentPattern() []float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return parsePattern(ptr.Deref(st.s.CurrentPattern, ""))
}

func (st *State) MinPower() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.MinPower, unset)
}

func (st *State) MaxPower() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.MaxPower, unset)
}

func (st *State) AvgPower() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.AvgPower, unset)
}

func (st *State) LastCurrentNow() int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.LastCurrentNow, 0)
}

func (st *State) Voltage() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.Voltage, unset)
}

func (st *State) Temperature() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return ptr.Deref(st.s.Temperature, unset)
}

// IsConfigured reports whether a capacity and a current pattern were saved.
func (st *State) IsConfigured() bool {
	return st.Capacity() != unset && len(st.CurrentPattern()) > 0
}

// CapacityProfile returns the saved profile, or ErrNotConfigured.
func (st *State) CapacityProfile() (CapacityProfile, error) {
	if !st.IsConfigured() {
		return CapacityProfile{}, ErrNotConfigured
	}
	return CapacityProfile{
		DeclaredCapacityMah:    st.Capacity(),
		ObservedCurrentPattern: st.CurrentPattern(),
	}, nil
}

// SaveCapacityProfile replaces the profile. A non-positive capacity only
// updates the pattern.
func (st *State) SaveCapacityProfile(p CapacityProfile) error {
	return st.update(func(s *RawState) bool {
		if p.DeclaredCapacityMah > 0 {
			s.Capacity = ptr.To(p.DeclaredCapacityMah)
		}
		s.CurrentPattern = ptr.To(formatPattern(p.ObservedCurrentPattern))
		return true
	})
}

func (st *State) SetMinPower(v float64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.MinPower, v) })
}

func (st *State) SetMaxPower(v float64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.MaxPower, v) })
}

func (st *State) SetAvgPower(v float64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.AvgPower, v) })
}

func (st *State) SetLastCurrentNow(v int64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.LastCurrentNow, v) })
}

func (st *State) SetVoltage(v float64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.Voltage, v) })
}

func (st *State) SetTemperature(v float64) error {
	return st.update(func(s *RawState) bool { return setIfChanged(&s.Temperature, v) })
}

func setIfChanged[T comparable](p **T, v T) bool {
	if *p != nil && **p == v {
		return false
	}
	*p = ptr.To(v)
	return true
}

func (st *State) update(fn func(s *RawState) bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !fn(st.s) {
		return nil
	}
	return st.saveLocked()
}

func (st *State) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	fp, err := os.Open(st.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			st.s = &RawState{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open state file %s", st.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", st.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read state file %s", st.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		st.s = &RawState{}
		return nil
	}

	raw := RawState{}
	err = json.Unmarshal(b, &raw)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal state from file %s", st.filepath)
	}
	st.s = &raw

	return nil
}

func (st *State) Save() error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.saveLocked()
}

// saveLocked writes to a temp file and renames it so a crash never leaves a
// truncated state file behind.
func (st *State) saveLocked() error {
	if st.filepath == "" {
		return nil
	}

	b, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal state")
	}

	tmp, err := os.CreateTemp(filepath.Dir(st.filepath), ".state-*.json")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temp file for %s", st.filepath)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return pkgerrors.Wrapf(err, "failed to write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), st.filepath); err != nil {
		return pkgerrors.Wrapf(err, "failed to replace state file %s", st.filepath)
	}

	return nil
}

func (st *State) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"capacity":       st.Capacity(),
		"currentPattern": st.CurrentPattern(),
		"minPower":       st.MinPower(),
		"maxPower":       st.MaxPower(),
		"avgPower":       st.AvgPower(),
		"lastCurrentNow": st.LastCurrentNow(),
	}
}

func formatPattern(values []float64) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// parsePattern drops entries that are not numbers.
func parsePattern(s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
