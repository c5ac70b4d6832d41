package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTConfig configures the broker bridge
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// mqttClient is the subset of mqtt.Client the bridge uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTBridge republishes events to <prefix>/work_orders/<type>
type MQTTBridge struct {
	client mqttClient
	prefix string
}

// NewMQTTBridge connects to the broker
func NewMQTTBridge(cfg MQTTConfig) (*MQTTBridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	log.WithField("broker", cfg.Broker).Info("MQTT bridge connected")
	return newMQTTBridge(client, cfg.TopicPrefix), nil
}

func newMQTTBridge(client mqttClient, prefix string) *MQTTBridge {
	return &MQTTBridge{client: client, prefix: strings.TrimRight(prefix, "/")}
}

// Topic returns the topic an event of the given type is published on
func (b *MQTTBridge) Topic(eventType string) string {
	return fmt.Sprintf("%s/work_orders/%s", b.prefix, strings.ToLower(eventType))
}

// Publish sends the event at QoS 0 without waiting for the broker
func (b *MQTTBridge) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).Error("Failed to encode mqtt event")
		return
	}
	token := b.client.Publish(b.Topic(e.Type), 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.WithError(token.Error()).WithField("work_order_id", e.WorkOrderID).Warn("MQTT publish failed")
		}
	}()
}

// Connected reports whether the broker connection is up
func (b *MQTTBridge) Connected() bool {
	return b.client.IsConnected()
}

// Close disconnects from the broker
func (b *MQTTBridge) Close() {
	b.client.Disconnect(250)
}
