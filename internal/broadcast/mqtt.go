package broadcast

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/transcript"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 250 * time.Millisecond
)

// MQTTConfig carries the publisher settings.
type MQTTConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
	ClientID string
}

// MQTTPublisher mirrors every broadcast record onto an MQTT topic.
// Publishing is best-effort like the WebSocket hub.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

// NewMQTTPublisher connects to the broker. A connection failure is a
// network-category error; the caller decides whether MQTT is required.
func NewMQTTPublisher(cfg MQTTConfig, log *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(mqttConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) || token.Error() != nil {
		return nil, errors.New(token.Error()).
			Component("broadcast").
			Category(errors.CategoryNetwork).
			Context("broker", cfg.Broker).
			Context("operation", "mqtt_connect").
			Build()
	}

	log.Info("mqtt publisher connected", "broker", cfg.Broker, "topic", cfg.Topic)
	return &MQTTPublisher{client: client, topic: cfg.Topic, log: log}, nil
}

// Broadcast publishes the record, dropping it on marshal or send failure.
func (p *MQTTPublisher) Broadcast(rec *transcript.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.log.Debug("mqtt record marshal failed", "error", err)
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) || token.Error() != nil {
		p.log.Debug("mqtt publish dropped", "error", token.Error())
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// MultiSink fans one record out to several sinks.
type MultiSink []Sink

// Broadcast forwards the record to every sink.
func (m MultiSink) Broadcast(rec *transcript.Record) {
	for _, s := range m {
		s.Broadcast(rec)
	}
}
