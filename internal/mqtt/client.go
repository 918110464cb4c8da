package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/logger"
)

// client implements Publisher on top of paho.
type client struct {
	config         Config
	internalClient paho.Client
	connectToken   paho.Token
	mu             sync.Mutex
	log            logger.Logger
}

// NewClient creates an unconnected client from settings.
func NewClient(settings *conf.Settings) Publisher {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates an unconnected client.
func NewClientWithConfig(cfg Config) Publisher {
	return &client{config: cfg, log: GetLogger()}
}

// Connect starts connecting to the broker and waits until the first
// connection is up or ctx expires. On failure paho keeps retrying in the
// background every RetryInterval, and reconnects after later drops.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", c.config.Broker).
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			Build()
	}

	// A host that does not resolve yet may still come up later, so only warn.
	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			c.log.Warn("MQTT broker host does not resolve, will keep retrying",
				logger.String("broker_host", host),
				logger.Error(err))
		}
	}

	if c.internalClient == nil {
		opts := paho.NewClientOptions()
		opts.AddBroker(c.config.Broker)
		opts.SetClientID(c.config.ClientID)
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
		opts.SetCleanSession(true)
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectRetryInterval(c.config.RetryInterval)
		opts.SetConnectTimeout(c.config.ConnectTimeout)
		opts.SetOnConnectHandler(c.onConnect)
		opts.SetConnectionLostHandler(c.onConnectionLost)

		c.internalClient = paho.NewClient(opts)
		c.connectToken = c.internalClient.Connect()
	}

	// The token stays pending while paho retries.
	if !waitToken(ctx, c.connectToken, c.config.ConnectTimeout) {
		return errors.Newf("broker not reachable yet, retrying in background").
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			NetworkContext(c.config.Broker, c.config.ConnectTimeout).
			Build()
	}
	if err := c.connectToken.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			NetworkContext(c.config.Broker, c.config.ConnectTimeout).
			Build()
	}
	return nil
}

// Publish sends payload with QoS 0.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		return errors.Newf("publish timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

// isConnected reports an open connection. paho's IsConnected is also true
// while a retried first connect is pending, when publishes would only queue.
func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnectionOpen()
}

// Disconnect closes the broker connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds())) //nolint:gosec // G115: timeout is small and positive
		c.internalClient = nil
		c.connectToken = nil
	}
}

func (c *client) onConnect(_ paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
}

// waitToken waits for a paho token, the context or the timeout.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}
