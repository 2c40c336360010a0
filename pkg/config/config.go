package config

import "time"

type Config interface {
	PollInterval() time.Duration
	NotificationInterval() time.Duration
	WidgetInterval() time.Duration
	DataDir() string
	PowerSupplyPath() string
	SampleLog() bool
	SampleRetention() time.Duration
	PruneSchedule() string
	Notification() bool
	MQTTBroker() string
	MQTTTopic() string
	InfluxURL() string
	InfluxToken() string
	InfluxOrg() string
	InfluxBucket() string
	Metrics() bool
	AllowNonRootAccess() bool

	SetPollInterval(time.Duration)
	SetNotification(bool)
	SetSampleLog(bool)
	SetSampleRetention(time.Duration)
	SetMQTTBroker(string)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
