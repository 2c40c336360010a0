package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/events"
	"github.com/charlie0129/battwatt/pkg/types"
	"github.com/charlie0129/battwatt/pkg/version"
)

var errNoReading = errors.New("no battery reading yet")

func (d *Daemon) getSnapshot(c *gin.Context) {
	resp := types.SnapshotResponse{Configured: d.state.IsConfigured()}
	if snap, ok := d.monitor.Latest(); ok {
		resp.Snapshot = &snap
	}
	c.IndentedJSON(http.StatusOK, resp)
}

func (d *Daemon) getWidget(c *gin.Context) {
	snap, ok := d.monitor.Latest()
	if !ok {
		c.IndentedJSON(http.StatusServiceUnavailable, errNoReading.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, errNoReading)
		return
	}
	c.IndentedJSON(http.StatusOK, snap.Widget())
}

func (d *Daemon) getNotification(c *gin.Context) {
	snap, ok := d.monitor.Latest()
	if !ok {
		c.IndentedJSON(http.StatusServiceUnavailable, errNoReading.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, errNoReading)
		return
	}
	c.IndentedJSON(http.StatusOK, snap.Notification())
}

func (d *Daemon) getExtrema(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.monitor.Extrema())
}

func (d *Daemon) resetExtrema(c *gin.Context) {
	if err := d.monitor.ResetExtrema(); err != nil {
		logrus.Errorf("resetExtrema failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	ext := d.monitor.Extrema()
	d.hub.Publish(events.ExtremaReset, ext)
	logrus.Info("session extrema reset")

	c.IndentedJSON(http.StatusOK, ext)
}

func (d *Daemon) getHistory(c *gin.Context) {
	if d.samples == nil {
		c.IndentedJSON(http.StatusNotFound, "sample log is disabled")
		return
	}

	var since time.Time
	if s := c.Query("since"); s != "" {
		dur, err := time.ParseDuration(s)
		if err != nil || dur <= 0 {
			err := fmt.Errorf("invalid duration %q", s)
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		since = time.Now().Add(-dur)
	}

	samples, err := d.samples.Range(c.Request.Context(), since, time.Time{})
	if err != nil {
		logrus.Errorf("getHistory failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, types.HistoryResponse{Samples: samples})
}

func (d *Daemon) clearHistory(c *gin.Context) {
	if d.samples == nil {
		c.IndentedJSON(http.StatusNotFound, "sample log is disabled")
		return
	}

	if err := d.samples.Clear(c.Request.Context()); err != nil {
		logrus.Errorf("clearHistory failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Info("sample log cleared")
	c.IndentedJSON(http.StatusOK, "ok")
}

func (d *Daemon) getLiveHistory(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, types.LiveHistoryResponse{Points: d.monitor.History()})
}

func (d *Daemon) getProfile(c *gin.Context) {
	resp := d.profileResponse()
	if !resp.Configured {
		c.IndentedJSON(http.StatusConflict, "battery capacity is not configured")
		return
	}
	c.IndentedJSON(http.StatusOK, resp)
}

func (d *Daemon) setProfile(c *gin.Context) {
	var req types.ProfileRequest
	if c.Request.ContentLength != 0 {
		if err := c.BindJSON(&req); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	resp, err := d.configureProfile(c.Request.Context(), req.CapacityMah)
	switch {
	case errors.Is(err, errInvalidCapacity), errors.Is(err, errCapacityUnknown), errors.Is(err, errCurrentUnavailable):
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	case err != nil:
		logrus.Errorf("setProfile failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, resp)
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Snapshot())
}

// getHealth reports whether the sampler has been ticking on time in the
// last minute.
func (d *Daemon) getHealth(c *gin.Context) {
	interval := d.conf.PollInterval()
	window := time.Minute
	expected := int(window / interval)
	got := d.recorder.GetRecordsIn(window)

	resp := types.HealthResponse{
		LastSample:      d.recorder.GetLastRecord(),
		ExpectedSamples: expected,
		Samples:         got,
		Healthy:         got > 0,
	}
	if d.samples != nil {
		next, running := d.pruner.Status()
		resp.Pruning = running
		if running && !next.IsZero() {
			resp.NextPrune = &next
		}
	}
	c.IndentedJSON(http.StatusOK, resp)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, types.VersionResponse{
		Version:   version.Version,
		GitCommit: version.GitCommit,
	})
}
