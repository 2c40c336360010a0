package client

import (
	"encoding/json"
	"net/url"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battwatt/pkg/config"
	"github.com/charlie0129/battwatt/pkg/telemetry"
	"github.com/charlie0129/battwatt/pkg/types"
)

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func (c *Client) GetSnapshot() (*types.SnapshotResponse, error) {
	return getJSON[types.SnapshotResponse](c, "/snapshot", "snapshot")
}

func (c *Client) GetWidget() (*telemetry.WidgetView, error) {
	return getJSON[telemetry.WidgetView](c, "/widget", "widget view")
}

func (c *Client) GetNotification() (*telemetry.NotificationView, error) {
	return getJSON[telemetry.NotificationView](c, "/notification", "notification view")
}

func (c *Client) GetExtrema() (*telemetry.SessionExtrema, error) {
	return getJSON[telemetry.SessionExtrema](c, "/extrema", "session extrema")
}

func (c *Client) ResetExtrema() (string, error) {
	return c.Delete("/extrema")
}

// GetHistory returns logged samples newer than since ago.
func (c *Client) GetHistory(since time.Duration) (*types.HistoryResponse, error) {
	q := url.Values{}
	q.Set("since", since.String())
	return getJSON[types.HistoryResponse](c, "/history?"+q.Encode(), "history")
}

func (c *Client) GetLiveHistory() (*types.LiveHistoryResponse, error) {
	return getJSON[types.LiveHistoryResponse](c, "/history/live", "live history")
}

func (c *Client) ClearHistory() (string, error) {
	return c.Delete("/history")
}

func (c *Client) GetProfile() (*types.ProfileResponse, error) {
	return getJSON[types.ProfileResponse](c, "/profile", "capacity profile")
}

// Configure runs the first-run configuration. It blocks while the daemon
// collects current samples.
func (c *Client) Configure(capacityMah int) (*types.ProfileResponse, error) {
	payload, err := json.Marshal(types.ProfileRequest{CapacityMah: capacityMah})
	if err != nil {
		return nil, err
	}
	ret, err := c.Post("/profile", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to configure capacity profile")
	}

	var resp types.ProfileResponse
	if err := json.Unmarshal([]byte(ret), &resp); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal capacity profile")
	}
	return &resp, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[config.RawFileConfig](c, "/config", "config")
}

func (c *Client) GetVersion() (*types.VersionResponse, error) {
	return getJSON[types.VersionResponse](c, "/version", "version")
}

func (c *Client) GetHealth() (*types.HealthResponse, error) {
	return getJSON[types.HealthResponse](c, "/health", "health")
}
