package telemetry

import "gonum.org/v1/gonum/stat"

// AverageWindowCapacity is the number of samples per emitted mean.
const AverageWindowCapacity = 10

// AverageWindow is a stepped average: a mean is computed every
// AverageWindowCapacity samples and held until the next one. It is not a
// sliding window.
type AverageWindow struct {
	samples []float64
	mean    float64
	hasMean bool
}

func NewAverageWindow() *AverageWindow {
	return &AverageWindow{
		samples: make([]float64, 0, AverageWindowCapacity),
	}
}

// Push adds a sample and returns the held mean. ok is false until the first
// window has been filled.
func (w *AverageWindow) Push(amps float64) (mean float64, ok bool) {
	w.samples = append(w.samples, amps)
	if len(w.samples) >= AverageWindowCapacity {
		w.mean = stat.Mean(w.samples, nil)
		w.hasMean = true
		w.samples = w.samples[:0]
	}
	return w.mean, w.hasMean
}

// Mean returns the held mean without pushing.
func (w *AverageWindow) Mean() (float64, bool) {
	return w.mean, w.hasMean
}

// Len returns the number of buffered samples.
func (w *AverageWindow) Len() int {
	return len(w.samples)
}
