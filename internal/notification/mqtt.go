package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

const (
	mqttConnectTimeout    = 30 * time.Second
	mqttPublishTimeout    = 10 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

// MQTTConfig configures the MQTT provider
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// MQTTProvider publishes alerts as JSON to a broker topic. The connection
// is made lazily on the first alert and kept open.
type MQTTProvider struct {
	config MQTTConfig
	log    logger.Logger

	mu        sync.Mutex
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewMQTTProvider creates a provider; it does not connect.
func NewMQTTProvider(config MQTTConfig, log logger.Logger) (*MQTTProvider, error) {
	if config.Broker == "" || config.Topic == "" {
		return nil, errors.Newf("mqtt broker and topic are required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.QoS > 2 {
		return nil, errors.Newf("mqtt qos must be 0, 1 or 2, got %d", config.QoS).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.ClientID == "" {
		config.ClientID = "zoolog"
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}
	return &MQTTProvider{config: config, log: log, newClient: mqtt.NewClient}, nil
}

func (p *MQTTProvider) Name() string { return "mqtt" }

func (p *MQTTProvider) connect(ctx context.Context) (mqtt.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnectionOpen() {
		return p.client, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetUsername(p.config.Username)
	opts.SetPassword(p.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info("connected to mqtt broker", logger.String("broker", p.config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("mqtt connection lost", logger.String("broker", p.config.Broker), logger.Error(err))
	})

	client := p.newClient(opts)
	if err := wait(ctx, client.Connect(), mqttConnectTimeout); err != nil {
		return nil, p.wrap(err, "connect")
	}
	p.client = client
	return client, nil
}

// Send publishes the alert JSON
func (p *MQTTProvider) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return p.wrap(err, "marshal")
	}
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	token := client.Publish(p.config.Topic, p.config.QoS, p.config.Retain, payload)
	if err := wait(ctx, token, mqttPublishTimeout); err != nil {
		return p.wrap(err, "publish")
	}
	return nil
}

// Close disconnects from the broker
func (p *MQTTProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(mqttDisconnectQuiesce)
		p.client = nil
	}
}

func (p *MQTTProvider) wrap(err error, op string) error {
	category := errors.CategoryNetwork
	switch {
	case errors.Is(err, context.Canceled):
		category = errors.CategoryCancellation
	case errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	}
	return errors.New(err).
		Component("notification").
		Category(category).
		Context("provider", "mqtt").
		Context("operation", op).
		Context("topic", p.config.Topic).
		Build()
}

// wait blocks until the token completes, ctx ends or timeout passes.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}
