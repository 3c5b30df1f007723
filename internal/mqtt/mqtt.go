package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"co2dash/internal/config"
	"co2dash/internal/modules/emissions/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Publisher pushes forecast summaries to the broker, one retained message
// per country under <prefix>/<country_id>.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.MQTTBroker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Connect waits for the initial connection and respects ctx and Disconnect().
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler sets connected=true.
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		case <-p.stopCh:
			p.client.Disconnect(0)
			return fmt.Errorf("publisher stopped")
		default:
		}
	}
}

// PublishForecast sends event as retained JSON at QoS 1.
func (p *Publisher) PublishForecast(ctx context.Context, event types.ForecastEvent) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := forecastTopic(p.cfg.MQTTTopicPrefix, event.CountryID)
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(topic, 1, true, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("failed to publish forecast", "topic", topic, "error", err)
		return fmt.Errorf("publish forecast: %w", err)
	}

	p.logger.Debug("published forecast",
		"topic", topic,
		"country_id", event.CountryID,
		"horizon_year", event.HorizonYear,
	)
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the MQTT connection.
// Idempotent; after Disconnect, Connect() returns "publisher stopped".
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func brokerURL(cfg config.Config) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort)
}

func forecastTopic(prefix string, countryID int) string {
	if prefix == "" {
		return strconv.Itoa(countryID)
	}
	return prefix + "/" + strconv.Itoa(countryID)
}

func encodeEvent(event types.ForecastEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal forecast event: %w", err)
	}
	return data, nil
}
