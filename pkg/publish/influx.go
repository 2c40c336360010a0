package publish

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battwatt/pkg/telemetry"
)

const measurement = "battery"

// InfluxPublisher writes one point per snapshot.
type InfluxPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewInfluxPublisher(url, token, org, bucket string) *InfluxPublisher {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxPublisher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

// Ping checks that the server is healthy.
func (p *InfluxPublisher) Ping(ctx context.Context) error {
	health, err := p.client.Health(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "influx health check failed")
	}
	if health.Status != "pass" {
		return pkgerrors.Errorf("influx health status: %s", health.Status)
	}
	return nil
}

func (p *InfluxPublisher) Publish(ctx context.Context, s telemetry.Snapshot) error {
	if err := p.writeAPI.WritePoint(ctx, Point(s)); err != nil {
		return pkgerrors.Wrap(err, "failed to write influx point")
	}
	return nil
}

func (p *InfluxPublisher) Close() error {
	p.client.Close()
	return nil
}

// Point converts a snapshot to an influx point.
func Point(s telemetry.Snapshot) *write.Point {
	p := write.NewPointWithMeasurement(measurement).
		AddTag("status", string(s.Status)).
		AddTag("plugged", string(s.Plugged)).
		AddField("power_w", round3(s.Sample.PowerWatts)).
		AddField("voltage_v", round3(s.Sample.VoltageVolts)).
		AddField("current_a", round3(s.Sample.CurrentAmps)).
		AddField("percent", round3(s.BatteryPercent)).
		AddField("temperature_c", round3(s.TemperatureC)).
		AddField("min_power_w", round3(s.Extrema.MinPowerWatts)).
		AddField("max_power_w", round3(s.Extrema.MaxPowerWatts)).
		SetTime(s.Sample.Timestamp)
	if !s.Estimate.Indeterminate {
		p.AddField("estimate_min", int64(s.Estimate.Minutes))
	}
	if s.Extrema.SessionID != "" {
		p.AddTag("session", s.Extrema.SessionID)
	}
	return p
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
