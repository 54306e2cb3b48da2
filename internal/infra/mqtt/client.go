// Package mqtt publishes battery snapshots to an MQTT broker.
package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client manages the broker connection. Publishing goes through Publisher.
type Client struct {
	client paho.Client
	config ClientConfig
}

// NewClient connects to the broker and returns once the first connect
// completes. Reconnects happen in the background.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is empty")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Printf("[mqtt] connected to %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("[mqtt] connection lost: %v", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", config.Broker, token.Error())
	}

	return &Client{client: client, config: config}, nil
}

// Native returns the underlying paho client.
func (c *Client) Native() paho.Client {
	return c.client
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects, allowing 250ms for in-flight messages.
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("[mqtt] disconnected")
}
