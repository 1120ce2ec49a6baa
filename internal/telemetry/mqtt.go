// Package telemetry mirrors booth events to an MQTT broker so home automation
// or a remote dashboard can follow the kiosk.
package telemetry

import (
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
)

const connectTimeout = 10 * time.Second

// publisher is the subset of mqtt.Client used by Mirror.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// payload is the JSON body published for every event.
type payload struct {
	Event string    `json:"event"`
	Args  []any     `json:"args,omitempty"`
	Time  time.Time `json:"time"`
}

// Mirror publishes every broadcast event to <prefix>/events/<event>.
// It implements web.Mirror.
type Mirror struct {
	client publisher
	prefix string
	now    func() time.Time
}

// Connect dials the broker described by cfg. An unreachable broker is not
// fatal: the client keeps retrying in the background and events published
// meanwhile are dropped.
func Connect(cfg config.MQTTConfig) *Mirror {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	statusTopic := prefix + "/status"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(statusTopic, "offline", 1, true)

	opts.OnConnect = func(c mqtt.Client) {
		debug.Info("mqtt connected to %s", cfg.Broker)
		c.Publish(statusTopic, 1, true, "online")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Error("mqtt connection lost", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		debug.Warn("mqtt broker %s unreachable, retrying in background", cfg.Broker)
	} else if err := token.Error(); err != nil {
		debug.Error("mqtt connect", err)
	}
	return newMirror(client, prefix)
}

func newMirror(client publisher, prefix string) *Mirror {
	return &Mirror{client: client, prefix: prefix, now: time.Now}
}

// Topic returns the topic an event is published on. Spaces in event names
// become underscores.
func (m *Mirror) Topic(event string) string {
	return m.prefix + "/events/" + strings.ReplaceAll(event, " ", "_")
}

// Publish sends event without waiting for the broker.
func (m *Mirror) Publish(event string, args []any) {
	if !m.client.IsConnected() {
		debug.Verbose("mqtt offline, dropping %q", event)
		return
	}
	body, err := json.Marshal(payload{Event: event, Args: args, Time: m.now().UTC()})
	if err != nil {
		debug.Error("mqtt encode "+event, err)
		return
	}
	m.client.Publish(m.Topic(event), 0, false, body)
}

// Close disconnects from the broker, allowing 250ms for in-flight messages.
func (m *Mirror) Close() {
	m.client.Disconnect(250)
}
