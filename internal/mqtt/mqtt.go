// Package mqtt publishes inspection snapshots to an MQTT broker.
package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/ppe-go/internal/logger"
)

// Publisher is the MQTT client used by the inspection service.
type Publisher interface {
	// Connect establishes the broker connection.
	Connect(ctx context.Context) error

	// Publish sends payload to topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	IsConnected() bool

	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic, inspections go to <Topic>/inspections
	Retain   bool

	ConnectTimeout    time.Duration
	RetryInterval     time.Duration // delay between connection attempts until the first connect succeeds
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default timeouts.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    30 * time.Second,
		RetryInterval:     10 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// InspectionTopic returns the topic inspection snapshots are published to.
func InspectionTopic(base string) string {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base == "" {
		return "inspections"
	}
	return base + "/inspections"
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the mqtt package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("mqtt")
	})
	return serviceLogger
}
