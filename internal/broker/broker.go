// internal/broker/broker.go
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Broker publishes keyed messages to a topic.
type Broker interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and addresses a broker.
type Config struct {
	// Driver is one of "kafka", "nats", "rabbitmq" or "none".
	Driver string `yaml:"driver" toml:"driver"`

	// URL is the broker address; a comma-separated broker list for kafka.
	URL string `yaml:"url" toml:"url"`

	// Topic is the kafka topic, NATS subject or RabbitMQ queue.
	Topic string `yaml:"topic" toml:"topic"`
}

// Enabled reports whether cfg selects a driver.
func (c Config) Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "none":
		return false
	}
	return true
}

// Validate checks the configuration without connecting.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("broker: url is required")
	}
	if strings.TrimSpace(c.Topic) == "" {
		return errors.New("broker: topic is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "kafka", "nats", "rabbitmq":
		return nil
	default:
		return fmt.Errorf("broker: unsupported driver %q", c.Driver)
	}
}

// Open connects to the configured broker. A disabled config returns (nil, nil).
func Open(ctx context.Context, cfg Config) (Broker, error) {
	_ = ctx

	if !cfg.Enabled() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "kafka":
		return openKafka(cfg)
	case "nats":
		return openNATS(cfg)
	default:
		return openRabbitMQ(cfg)
	}
}
