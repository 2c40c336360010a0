package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/config"
	"github.com/charlie0129/battwatt/pkg/events"
	"github.com/charlie0129/battwatt/pkg/metrics"
	"github.com/charlie0129/battwatt/pkg/notify"
	"github.com/charlie0129/battwatt/pkg/publish"
	"github.com/charlie0129/battwatt/pkg/reading"
	"github.com/charlie0129/battwatt/pkg/store"
	"github.com/charlie0129/battwatt/pkg/telemetry"
)

// Notifier shows the persistent notification.
type Notifier interface {
	Notify(telemetry.NotificationView) error
	Close() error
}

// Options holds the parts of a Daemon. Only Config, Reader and State are
// required.
type Options struct {
	Config    *config.File
	Reader    reading.Source
	State     *store.State
	Samples   *store.SampleLog
	Prom      *metrics.PromSink
	Publisher *publish.Multi
	Notifier  Notifier
}

// Daemon owns the monitor and every surface fed by it.
type Daemon struct {
	conf      *config.File
	reader    reading.Source
	state     *store.State
	samples   *store.SampleLog
	monitor   *telemetry.Monitor
	hub       *events.EventHub
	prom      *metrics.PromSink
	publisher *publish.Multi
	notifier  Notifier
	pruner    *Scheduler
	recorder  *TimeSeriesRecorder
	wg        sync.WaitGroup

	// profileMu serializes first-run configuration.
	profileMu sync.Mutex

	statusMu      sync.Mutex
	lastStatus    loopStatus
	lastPrintTime time.Time
}

func New(o Options) *Daemon {
	if o.Config == nil || o.Reader == nil || o.State == nil {
		panic("daemon needs a config, a reader and a state store")
	}
	if o.Publisher == nil {
		o.Publisher = publish.NewMulti()
	}

	d := &Daemon{
		conf:      o.Config,
		reader:    o.Reader,
		state:     o.State,
		samples:   o.Samples,
		monitor:   telemetry.NewMonitor(o.State),
		hub:       events.NewEventHub(),
		prom:      o.Prom,
		publisher: o.Publisher,
		notifier:  o.Notifier,
		recorder:  NewTimeSeriesRecorder(recorderSize, o.Config.PollInterval()),
	}
	d.pruner = NewScheduler(d.pruneSamples, d.pruneCheck, d.onPruneError)
	return d
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/snapshot", d.getSnapshot)
	router.GET("/widget", d.getWidget)
	router.GET("/notification", d.getNotification)
	router.GET("/extrema", d.getExtrema)
	router.DELETE("/extrema", d.resetExtrema)
	router.GET("/history", d.getHistory)
	router.DELETE("/history", d.clearHistory)
	router.GET("/history/live", d.getLiveHistory)
	router.GET("/profile", d.getProfile)
	router.POST("/profile", d.setProfile)
	router.GET("/config", d.getConfig)
	router.GET("/health", d.getHealth)
	router.GET("/version", getVersion)
	router.GET("/ws", d.stream)
	if d.prom != nil {
		router.GET("/metrics", gin.WrapH(d.prom.Handler()))
	}

	return router
}

// start launches every background loop. They stop when ctx is done.
func (d *Daemon) start(ctx context.Context) {
	loops := []func(context.Context){d.sampleLoop, d.widgetLoop}
	if d.notifier != nil {
		loops = append(loops, d.notificationLoop)
	}
	for _, loop := range loops {
		loop := loop
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			loop(ctx)
		}()
	}

	if d.samples != nil {
		if err := d.pruner.Schedule(d.conf.PruneSchedule()); err != nil {
			logrus.WithError(err).Errorf("invalid prune schedule %q, sample log will not be pruned", d.conf.PruneSchedule())
		} else {
			d.pruner.Start()
		}
	}
}

// reload re-reads the config file and applies what can change at runtime.
func (d *Daemon) reload() error {
	if err := d.conf.Load(); err != nil {
		return err
	}
	if d.samples != nil {
		if err := d.pruner.Schedule(d.conf.PruneSchedule()); err != nil {
			return pkgerrors.Wrapf(err, "invalid prune schedule %q", d.conf.PruneSchedule())
		}
	}
	return nil
}

// close releases everything the daemon opened. Loops must be stopped first.
func (d *Daemon) close() {
	d.pruner.Stop()
	d.hub.Close()

	if d.notifier != nil {
		logrus.Info("closing notification")
		if err := d.notifier.Close(); err != nil {
			logrus.Errorf("failed to close notification: %v", err)
		}
	}

	if err := d.publisher.Close(); err != nil {
		logrus.Errorf("failed to close publishers: %v", err)
	}

	if err := d.state.Save(); err != nil {
		logrus.Errorf("failed to save state: %v", err)
	}

	if d.samples != nil {
		logrus.Info("closing sample log")
		if err := d.samples.Close(); err != nil {
			logrus.Errorf("failed to close sample log: %v", err)
		}
	}
}

// openPublishers builds the widget publishers enabled in conf.
func openPublishers(conf *config.File) *publish.Multi {
	var pubs []publish.Publisher

	if broker := conf.MQTTBroker(); broker != "" {
		p, err := publish.NewMQTTPublisher(broker, conf.MQTTTopic())
		if err != nil {
			logrus.WithError(err).WithField("broker", broker).Error("failed to connect to mqtt broker, widget will not be published")
		} else {
			pubs = append(pubs, p)
		}
	}

	if url := conf.InfluxURL(); url != "" {
		p := publish.NewInfluxPublisher(url, conf.InfluxToken(), conf.InfluxOrg(), conf.InfluxBucket())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.Ping(ctx); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("influxdb is not reachable yet, will keep trying on every publish")
		}
		cancel()
		pubs = append(pubs, p)
	}

	return publish.NewMulti(pubs...)
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	dataDir := conf.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create data dir %s", dataDir)
	}

	state, err := store.NewState(filepath.Join(dataDir, "state.json"))
	if err != nil {
		return err
	}
	logrus.WithFields(state.LogrusFields()).Info("state loaded")

	var samples *store.SampleLog
	if conf.SampleLog() {
		samples, err = store.NewSampleLog(filepath.Join(dataDir, "samples.db"))
		if err != nil {
			logrus.WithError(err).Error("failed to open sample log, charging power will not be logged")
			samples = nil
		}
	}

	var prom *metrics.PromSink
	if conf.Metrics() {
		prom, err = metrics.NewPromSink(nil)
		if err != nil {
			return err
		}
	}

	var notifier Notifier
	if conf.Notification() {
		n, err := notify.NewDBusNotifier()
		if err != nil {
			logrus.WithError(err).Error("failed to connect to dbus, notification disabled")
		} else {
			notifier = n
		}
	}

	d := New(Options{
		Config:    conf,
		Reader:    reading.NewAuto(conf.PowerSupplyPath()),
		State:     state,
		Samples:   samples,
		Prom:      prom,
		Publisher: openPublishers(conf),
		Notifier:  notifier,
	})
	router := d.setupRoutes()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := d.reload()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A socket left behind by a crashed daemon would make Listen fail.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	loopCtx, stopLoops := context.WithCancel(context.Background())
	d.start(loopCtx)

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping loops")
	stopLoops()
	d.wg.Wait()

	d.close()

	logrus.Info("exiting")
	return nil
}
