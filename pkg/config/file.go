package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		PollIntervalSeconds:         ptr.To(1),
		NotificationIntervalSeconds: ptr.To(5),
		WidgetIntervalSeconds:       ptr.To(2),
		DataDir:                     ptr.To("/var/lib/battwatt"),
		PowerSupplyPath:             ptr.To("/sys/class/power_supply"),
		SampleLog:                   ptr.To(true),
		SampleRetentionHours:        ptr.To(24),
		PruneSchedule:               ptr.To("@every 1h"),
		// Most headless boxes have no notification daemon on the bus.
		Notification:       ptr.To(false),
		MQTTBroker:         ptr.To(""),
		MQTTTopic:          ptr.To("battwatt/widget"),
		InfluxURL:          ptr.To(""),
		InfluxToken:        ptr.To(""),
		InfluxOrg:          ptr.To(""),
		InfluxBucket:       ptr.To(""),
		Metrics:            ptr.To(true),
		AllowNonRootAccess: ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	PollIntervalSeconds         *int    `json:"pollIntervalSeconds,omitempty"`
	NotificationIntervalSeconds *int    `json:"notificationIntervalSeconds,omitempty"`
	WidgetIntervalSeconds       *int    `json:"widgetIntervalSeconds,omitempty"`
	DataDir                     *string `json:"dataDir,omitempty"`
	PowerSupplyPath             *string `json:"powerSupplyPath,omitempty"`
	SampleLog                   *bool   `json:"sampleLog,omitempty"`
	SampleRetentionHours        *int    `json:"sampleRetentionHours,omitempty"`
	PruneSchedule               *string `json:"pruneSchedule,omitempty"`
	Notification                *bool   `json:"notification,omitempty"`
	MQTTBroker                  *string `json:"mqttBroker,omitempty"`
	MQTTTopic                   *string `json:"mqttTopic,omitempty"`
	InfluxURL                   *string `json:"influxURL,omitempty"`
	InfluxToken                 *string `json:"influxToken,omitempty"`
	InfluxOrg                   *string `json:"influxOrg,omitempty"`
	InfluxBucket                *string `json:"influxBucket,omitempty"`
	Metrics                     *bool   `json:"metrics,omitempty"`
	AllowNonRootAccess          *bool   `json:"allowNonRootAccess,omitempty"`
}

// get returns the configured value, or the default one.
func get[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := field(f.c); v != nil {
		return *v
	}
	return *field(defaultFileConfig)
}

func set[T any](f *File, field func(*RawFileConfig) **T, v T) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	*field(f.c) = &v
}

// atLeastOne returns the configured value of an interval-like field, or its
// default when the file holds zero or a negative number.
func atLeastOne(f *File, field func(*RawFileConfig) *int) int {
	if n := get(f, field); n >= 1 {
		return n
	}
	return *field(defaultFileConfig)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (f *File) PollInterval() time.Duration {
	return seconds(atLeastOne(f, func(c *RawFileConfig) *int { return c.PollIntervalSeconds }))
}

func (f *File) NotificationInterval() time.Duration {
	return seconds(atLeastOne(f, func(c *RawFileConfig) *int { return c.NotificationIntervalSeconds }))
}

func (f *File) WidgetInterval() time.Duration {
	return seconds(atLeastOne(f, func(c *RawFileConfig) *int { return c.WidgetIntervalSeconds }))
}

func (f *File) DataDir() string {
	return get(f, func(c *RawFileConfig) *string { return c.DataDir })
}

func (f *File) PowerSupplyPath() string {
	return get(f, func(c *RawFileConfig) *string { return c.PowerSupplyPath })
}

func (f *File) SampleLog() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.SampleLog })
}

func (f *File) SampleRetention() time.Duration {
	return time.Duration(atLeastOne(f, func(c *RawFileConfig) *int { return c.SampleRetentionHours })) * time.Hour
}

func (f *File) PruneSchedule() string {
	return get(f, func(c *RawFileConfig) *string { return c.PruneSchedule })
}

func (f *File) Notification() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.Notification })
}

func (f *File) MQTTBroker() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTBroker })
}

func (f *File) MQTTTopic() string {
	return get(f, func(c *RawFileConfig) *string { return c.MQTTTopic })
}

func (f *File) InfluxURL() string {
	return get(f, func(c *RawFileConfig) *string { return c.InfluxURL })
}

func (f *File) InfluxToken() string {
	return get(f, func(c *RawFileConfig) *string { return c.InfluxToken })
}

func (f *File) InfluxOrg() string {
	return get(f, func(c *RawFileConfig) *string { return c.InfluxOrg })
}

func (f *File) InfluxBucket() string {
	return get(f, func(c *RawFileConfig) *string { return c.InfluxBucket })
}

func (f *File) Metrics() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.Metrics })
}

func (f *File) AllowNonRootAccess() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.AllowNonRootAccess })
}

func (f *File) SetPollInterval(d time.Duration) {
	if d < time.Second {
		panic("poll interval must be at least one second")
	}
	set(f, func(c *RawFileConfig) **int { return &c.PollIntervalSeconds }, int(d/time.Second))
}

func (f *File) SetNotification(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.Notification }, b)
}

func (f *File) SetSampleLog(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.SampleLog }, b)
}

func (f *File) SetSampleRetention(d time.Duration) {
	if d < time.Hour {
		panic("sample retention must be at least one hour")
	}
	set(f, func(c *RawFileConfig) **int { return &c.SampleRetentionHours }, int(d/time.Hour))
}

func (f *File) SetMQTTBroker(s string) {
	set(f, func(c *RawFileConfig) **string { return &c.MQTTBroker }, s)
}

func (f *File) SetAllowNonRootAccess(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.AllowNonRootAccess }, b)
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	warnNonPositive(f.filepath, map[string]*int{
		"pollIntervalSeconds":         conf.PollIntervalSeconds,
		"notificationIntervalSeconds": conf.NotificationIntervalSeconds,
		"widgetIntervalSeconds":       conf.WidgetIntervalSeconds,
		"sampleRetentionHours":        conf.SampleRetentionHours,
	})
	f.c = &conf

	return nil
}

func warnNonPositive(path string, fields map[string]*int) {
	for k, v := range fields {
		if v != nil && *v < 1 {
			logrus.WithFields(logrus.Fields{
				"file":  path,
				"key":   k,
				"value": *v,
			}).Warn("config value must be at least 1, using the default")
		}
	}
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// Snapshot returns the effective configuration with every default filled in.
func (f *File) Snapshot() *RawFileConfig {
	return &RawFileConfig{
		PollIntervalSeconds:         ptr.To(int(f.PollInterval() / time.Second)),
		NotificationIntervalSeconds: ptr.To(int(f.NotificationInterval() / time.Second)),
		WidgetIntervalSeconds:       ptr.To(int(f.WidgetInterval() / time.Second)),
		DataDir:                     ptr.To(f.DataDir()),
		PowerSupplyPath:             ptr.To(f.PowerSupplyPath()),
		SampleLog:                   ptr.To(f.SampleLog()),
		SampleRetentionHours:        ptr.To(int(f.SampleRetention() / time.Hour)),
		PruneSchedule:               ptr.To(f.PruneSchedule()),
		Notification:                ptr.To(f.Notification()),
		MQTTBroker:                  ptr.To(f.MQTTBroker()),
		MQTTTopic:                   ptr.To(f.MQTTTopic()),
		InfluxURL:                   ptr.To(f.InfluxURL()),
		InfluxToken:                 ptr.To(redact(f.InfluxToken())),
		InfluxOrg:                   ptr.To(f.InfluxOrg()),
		InfluxBucket:                ptr.To(f.InfluxBucket()),
		Metrics:                     ptr.To(f.Metrics()),
		AllowNonRootAccess:          ptr.To(f.AllowNonRootAccess()),
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"pollInterval":         f.PollInterval(),
		"notificationInterval": f.NotificationInterval(),
		"widgetInterval":       f.WidgetInterval(),
		"dataDir":              f.DataDir(),
		"powerSupplyPath":      f.PowerSupplyPath(),
		"sampleLog":            f.SampleLog(),
		"sampleRetention":      f.SampleRetention(),
		"pruneSchedule":        f.PruneSchedule(),
		"notification":         f.Notification(),
		"mqttBroker":           f.MQTTBroker(),
		"influxURL":            f.InfluxURL(),
		"metrics":              f.Metrics(),
		"allowNonRootAccess":   f.AllowNonRootAccess(),
	}
}
