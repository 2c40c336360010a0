package publish

import (
	"context"

	"github.com/charlie0129/battwatt/pkg/telemetry"
)

// Publisher pushes snapshots to an outside consumer.
type Publisher interface {
	Publish(ctx context.Context, s telemetry.Snapshot) error
	Close() error
}

// Multi fans a snapshot out to several publishers.
type Multi struct {
	Publishers []Publisher
}

func NewMulti(pubs ...Publisher) *Multi {
	return &Multi{Publishers: pubs}
}

// Publish forwards s to every publisher and returns the first error. A
// failing publisher does not stop the others.
func (m *Multi) Publish(ctx context.Context, s telemetry.Snapshot) error {
	var first error
	for _, p := range m.Publishers {
		if err := p.Publish(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) Close() error {
	var first error
	for _, p := range m.Publishers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of publishers.
func (m *Multi) Len() int {
	return len(m.Publishers)
}
