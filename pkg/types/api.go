package types

import (
	"time"

	"github.com/charlie0129/battwatt/pkg/store"
	"github.com/charlie0129/battwatt/pkg/telemetry"
)

// SnapshotResponse is returned by GET /snapshot.
// Snapshot is nil until the first reading has been taken.
type SnapshotResponse struct {
	Configured bool                `json:"configured"`
	Snapshot   *telemetry.Snapshot `json:"snapshot,omitempty"`
}

// ProfileRequest is the body of POST /profile. A zero capacity means
// "use the saved or the detected one".
type ProfileRequest struct {
	CapacityMah int `json:"capacityMah,omitempty"`
}

// ProfileResponse is returned by GET and POST /profile.
type ProfileResponse struct {
	Configured          bool                  `json:"configured"`
	Profile             store.CapacityProfile `json:"profile"`
	DetectedCapacityMah int                   `json:"detectedCapacityMah,omitempty"`
	// Pattern is the current pattern formatted for display.
	Pattern []string `json:"pattern,omitempty"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Samples []store.Sample `json:"samples"`
}

// LiveHistoryResponse is returned by GET /history/live.
type LiveHistoryResponse struct {
	Points []telemetry.PowerPoint `json:"points"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Healthy         bool      `json:"healthy"`
	LastSample      time.Time `json:"lastSample"`
	Samples         int       `json:"samples"`
	ExpectedSamples int       `json:"expectedSamples"`
	// Pruning is true while the sample log prune schedule is active.
	Pruning   bool       `json:"pruning"`
	NextPrune *time.Time `json:"nextPrune,omitempty"`
}
