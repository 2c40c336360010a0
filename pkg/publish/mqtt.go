package publish

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battwatt/pkg/telemetry"
)

// mqttClient is the part of mqtt.Client we use.
type mqttClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// WidgetMessage is the retained payload consumed by home screen widgets.
type WidgetMessage struct {
	telemetry.WidgetView
	PowerWatts     float64   `json:"powerWatts"`
	BatteryPercent float64   `json:"batteryPercent"`
	Charging       bool      `json:"charging"`
	Time           time.Time `json:"time"`
}

// MQTTPublisher publishes the widget view as a retained message.
type MQTTPublisher struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("battwatt-" + uuid.NewString()[:8]).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, pkgerrors.Wrapf(token.Error(), "failed to connect to mqtt broker %s", broker)
	}
	return newMQTTPublisher(client, topic), nil
}

func newMQTTPublisher(c mqttClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, qos: 1}
}

func (p *MQTTPublisher) Publish(ctx context.Context, s telemetry.Snapshot) error {
	payload, err := json.Marshal(WidgetMessage{
		WidgetView:     s.Widget(),
		PowerWatts:     s.Sample.PowerWatts,
		BatteryPercent: s.BatteryPercent,
		Charging:       s.Charging(),
		Time:           s.Sample.Timestamp,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal widget message")
	}

	token := p.client.Publish(p.topic, p.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return pkgerrors.Wrapf(token.Error(), "failed to publish to %s", p.topic)
}

func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
