package reading

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// MockReader replays a fixed sequence of readings. The last reading is
// repeated once the sequence is exhausted.
type MockReader struct {
	mu       sync.Mutex
	readings []RawReading
	idx      int
	err      error
	design   int
}

// NewMockReader returns a reader replaying readings.
func NewMockReader(designMah int, readings ...RawReading) *MockReader {
	return &MockReader{
		readings: readings,
		design:   designMah,
	}
}

// SetError makes every following Read fail with err. nil clears it.
func (m *MockReader) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Push appends readings to the sequence.
func (m *MockReader) Push(readings ...RawReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, readings...)
}

func (m *MockReader) Read(ctx context.Context) (RawReading, error) {
	if err := ctx.Err(); err != nil {
		return RawReading{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return RawReading{}, m.err
	}
	if len(m.readings) == 0 {
		return RawReading{}, ErrNoBattery
	}

	r := m.readings[m.idx]
	if m.idx < len(m.readings)-1 {
		m.idx++
	}
	return r, nil
}

func (m *MockReader) DesignCapacityMah() (int, bool) {
	return m.design, m.design > 0
}

// Source is a Reader that can also probe the design capacity.
type Source interface {
	Reader
	CapacityProber
}

// NewAuto picks the sysfs reader when root contains a battery, and falls back
// to distatus/battery otherwise.
func NewAuto(root string) Source {
	s := NewSysfsReader(root)
	if _, _, err := s.scan(); err == nil {
		logrus.WithField("path", s.root).Info("using sysfs power_supply reader")
		return s
	}

	logrus.WithField("path", s.root).Info("no sysfs battery found, using distatus/battery reader")
	return NewDistatusReader()
}
